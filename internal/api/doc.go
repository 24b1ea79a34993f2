// Package api serves desklab's JSON API over echo.
//
// Every /api route requires HTTP Basic credentials checked against the
// account store. The authenticated user is the only identity handed to the
// lifecycle manager, and each route checks the authorization predicate for
// its action before calling it.
//
// Errors are rendered as {"error": "..."} with a status derived from the
// error code: validation 400, unauthorized 401, forbidden 403, not found
// 404, runtime failures 502 and port exhaustion 503.
package api
