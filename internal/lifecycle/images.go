package lifecycle

import (
	"context"
	"errors"
	"strings"

	"github.com/firefly-engineering/desklab/internal/audit"
	"github.com/firefly-engineering/desklab/internal/config"
	"github.com/firefly-engineering/desklab/internal/docstore"
	deskerrors "github.com/firefly-engineering/desklab/internal/errors"
	"github.com/firefly-engineering/desklab/internal/runtime"
)

// ImageEntry is a launchable image with its descriptor.
type ImageEntry struct {
	Ref        string                 `json:"ref"`
	Repository string                 `json:"repository"`
	Tag        string                 `json:"tag"`
	Created    string                 `json:"created"`
	Metadata   docstore.ImageMetadata `json:"metadata"`
}

// Save commits the session container into the user's image repository,
// then destroys the session. The session is kept when the image metadata
// cannot be stored. Saving a session that already runs one of the
// user's images overwrites that image.
func (m *Manager) Save(ctx context.Context, user, sessionID, name, desc string) (ref string, err error) {
	start := m.clock.Now()
	defer func() { m.observe("save", start, err) }()

	if _, err := m.lookup(ctx, user, sessionID); err != nil {
		return "", err
	}

	container := m.cfg.ContainerName(sessionID)
	info, err := m.rt.InspectContainer(ctx, container)
	if err != nil {
		return "", deskerrors.ExternalFailure("container inspect", err)
	}

	repo := m.cfg.UserRepo(user)
	srcRepo, srcTag := runtime.SplitRef(info.Image)
	tag := srcTag
	if srcRepo != repo {
		tag = container + "-" + srcTag
	}
	if err := config.ValidateImageTag(tag); err != nil {
		return "", deskerrors.ValidationError(err.Error())
	}

	meta := docstore.ImageMetadata{Name: name, Desc: desc}
	if _, err := m.rt.Commit(ctx, container, repo, tag, string(docstore.EncodeMetadata(meta))); err != nil {
		return "", deskerrors.ExternalFailure("container commit", err)
	}

	target := docstore.Ref{Name: repo, Tag: tag}
	if !docstore.IsArtifactBacked(m.store) {
		if err := docstore.WriteMetadata(ctx, m.store, target, meta); err != nil {
			return "", deskerrors.ExternalFailure("metadata write", err)
		}
	}

	if err := m.removeContainer(ctx, container); err != nil {
		return "", deskerrors.ExternalFailure("container remove", err)
	}
	if _, err := m.registry.Remove(ctx, user, sessionID); err != nil {
		m.log.Error("container removed but registry entry remains", "user", user, "session", sessionID, "error", err)
		return "", err
	}

	m.record(audit.EventSave, user, sessionID, "ref="+target.String())
	return target.String(), nil
}

// Promote publishes an image as a base image under targetTag. An empty
// targetTag keeps the source tag.
func (m *Manager) Promote(ctx context.Context, sourceRef, targetTag, name, desc string) (ref string, err error) {
	start := m.clock.Now()
	defer func() { m.observe("promote", start, err) }()

	if _, err := m.rt.InspectImage(ctx, sourceRef); err != nil {
		if errors.Is(err, runtime.ErrNotFound) {
			return "", deskerrors.ImageNotFound(sourceRef)
		}
		return "", deskerrors.ExternalFailure("image inspect", err)
	}

	if targetTag == "" {
		_, targetTag = runtime.SplitRef(sourceRef)
	}
	if err := config.ValidateImageTag(targetTag); err != nil {
		return "", deskerrors.ValidationError(err.Error())
	}

	if err := m.rt.Tag(ctx, sourceRef, m.cfg.BaseRepo, targetTag); err != nil {
		return "", deskerrors.ExternalFailure("image tag", err)
	}

	target := docstore.Ref{Name: m.cfg.BaseRepo, Tag: targetTag}
	if err := docstore.WriteMetadata(ctx, m.store, target, docstore.ImageMetadata{Name: name, Desc: desc}); err != nil {
		return "", deskerrors.ExternalFailure("metadata write", err)
	}

	m.record(audit.EventPromote, audit.SystemUser, "", sourceRef+" -> "+target.String())
	return target.String(), nil
}

// DeleteImage removes a saved or base image.
func (m *Manager) DeleteImage(ctx context.Context, ref string) (err error) {
	start := m.clock.Now()
	defer func() { m.observe("delete-image", start, err) }()

	if err := m.rt.RemoveImage(ctx, ref); err != nil {
		if errors.Is(err, runtime.ErrNotFound) {
			return deskerrors.ImageNotFound(ref)
		}
		return deskerrors.ExternalFailure("image remove", err)
	}

	owner, _ := m.ImageOwner(ref)
	if owner == "" {
		owner = audit.SystemUser
	}
	m.record(audit.EventDeleteImage, owner, "", ref)
	return nil
}

// ImageOwner returns the user whose repository holds ref. It reports false
// for base images and foreign repositories.
func (m *Manager) ImageOwner(ref string) (string, bool) {
	repo, _ := runtime.SplitRef(ref)
	user, ok := strings.CutPrefix(repo, m.cfg.UserRepoPrefix)
	if !ok || config.ValidateUserName(user) != nil {
		return "", false
	}
	return user, true
}

// ReadMetadata returns the descriptor of an image, or the default
// descriptor when none can be read.
func (m *Manager) ReadMetadata(ctx context.Context, ref string) docstore.ImageMetadata {
	r, err := docstore.ParseRef(ref)
	if err != nil {
		return docstore.DefaultMetadata()
	}
	return docstore.ReadMetadata(ctx, m.store, r)
}

// SessionMetadata returns the descriptor of the image a session runs.
func (m *Manager) SessionMetadata(ctx context.Context, user, sessionID string) (docstore.ImageMetadata, error) {
	if _, err := m.lookup(ctx, user, sessionID); err != nil {
		return docstore.ImageMetadata{}, err
	}
	info, err := m.rt.InspectContainer(ctx, m.cfg.ContainerName(sessionID))
	if err != nil {
		return docstore.DefaultMetadata(), nil
	}
	return m.ReadMetadata(ctx, info.Image), nil
}

// BaseImages lists the shared base images.
func (m *Manager) BaseImages(ctx context.Context) ([]ImageEntry, error) {
	return m.images(ctx, m.cfg.BaseRepo)
}

// UserImages lists the images a user has saved.
func (m *Manager) UserImages(ctx context.Context, user string) ([]ImageEntry, error) {
	return m.images(ctx, m.cfg.UserRepo(user))
}

func (m *Manager) images(ctx context.Context, repo string) ([]ImageEntry, error) {
	images, err := m.rt.Images(ctx, repo)
	if err != nil {
		return nil, deskerrors.ExternalFailure("image list", err)
	}

	entries := make([]ImageEntry, 0, len(images))
	for _, img := range images {
		entries = append(entries, ImageEntry{
			Ref:        img.Ref(),
			Repository: img.Repository,
			Tag:        img.Tag,
			Created:    img.Created,
			Metadata:   docstore.ReadMetadata(ctx, m.store, docstore.Ref{Name: img.Repository, Tag: img.Tag}),
		})
	}
	return entries, nil
}
