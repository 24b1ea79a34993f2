// Package tui provides the interactive session picker for desklab.
//
// The picker lists a user's running sessions followed by the base images and
// saved images they can launch from:
//
//	result, err := tui.RunPicker(sessions, base, mine)
//	switch result.Action {
//	case tui.ActionOpen:
//	    // Print connection details for result.Session
//	case tui.ActionLaunch:
//	    // Launch a session from result.Image
//	case tui.ActionSave:
//	    // Save result.Session with result.Save.Name and result.Save.Desc
//	case tui.ActionDestroy, tui.ActionReboot:
//	    // Act on result.Session
//	}
//
// Keys: Enter (open or launch), d (destroy), r (reboot), s (save wizard),
// / (filter), q (quit). Group headers are skipped during navigation.
package tui
