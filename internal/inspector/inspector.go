package inspector

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ssuji15/kennel/internal/allocator"
	"github.com/ssuji15/kennel/internal/catalog"
	"github.com/ssuji15/kennel/internal/runtime"
	"github.com/ssuji15/kennel/internal/util"
	"github.com/ssuji15/kennel/model"
)

// Label stamped on every container this service launches; the reverse lookup
// key for the inspector.
const ImageTypeLabel = "image_type"

// Inspector projects live containers into sessions. There is no cache: every
// call re-derives everything from the runtime, so two calls with no
// intervening runtime change always agree.
type Inspector struct {
	rt      runtime.Runtime
	cat     *catalog.Catalog
	baseURL string
	now     func() time.Time
}

func New(rt runtime.Runtime, cat *catalog.Catalog, baseURL string) *Inspector {
	return &Inspector{
		rt:      rt,
		cat:     cat,
		baseURL: baseURL,
		now:     time.Now,
	}
}

// WithClock overrides the uptime clock, for tests.
func (i *Inspector) WithClock(now func() time.Time) *Inspector {
	i.now = now
	return i
}

// ListSessions returns one session per live container. With filterUntracked,
// containers whose image matches no catalog entry are omitted; otherwise they
// appear with an empty image type.
func (i *Inspector) ListSessions(ctx context.Context, filterUntracked bool) ([]model.Session, error) {
	containers, err := i.rt.ListContainers(ctx)
	if err != nil {
		return nil, &model.UpstreamError{Upstream: "runtime", Err: err}
	}

	sessions := make([]model.Session, 0, len(containers))
	for _, c := range containers {
		s := i.project(c)
		if filterUntracked && s.ImageType == "" {
			continue
		}
		sessions = append(sessions, s)
	}

	sort.Slice(sessions, func(a, b int) bool { return sessions[a].ID < sessions[b].ID })
	return sessions, nil
}

// FindSession looks one session up by container id; docker-style id prefixes
// are accepted. Returns nil when no live container matches.
func (i *Inspector) FindSession(ctx context.Context, id string) (*model.Session, error) {
	sessions, err := i.ListSessions(ctx, false)
	if err != nil {
		return nil, err
	}
	for idx := range sessions {
		if sessions[idx].ID == id || (len(id) >= 10 && strings.HasPrefix(sessions[idx].ID, id)) {
			return &sessions[idx], nil
		}
	}
	return nil, nil
}

func (i *Inspector) project(c model.ContainerInfo) model.Session {
	imageType := c.Labels[ImageTypeLabel]
	if imageType == "" {
		if key, ok := i.cat.TypeForImage(c.Image); ok {
			imageType = key
		}
	}

	s := model.Session{
		ID:        c.ID,
		ImageType: imageType,
		Image:     c.Image,
		Username:  c.Env[util.EnvUser],
		Devices:   util.SplitDevices(c.Env[allocator.DeviceEnvVar]),
		CreatedAt: c.CreatedAt,
	}
	if !c.CreatedAt.IsZero() {
		s.Uptime = util.FormatUptime(i.now().Sub(c.CreatedAt))
	}

	if imageType == "" {
		// untracked containers get their bindings verbatim
		s.Ports = c.Ports
		return s
	}

	class := i.cat.ClassOf(imageType)
	spec, err := i.cat.Lookup(imageType)
	if err != nil {
		s.Ports = c.Ports
		return s
	}

	s.Ports = make(map[int]int, len(spec.Ports))
	for internal := range spec.Ports {
		if host, ok := c.Ports[internal]; ok {
			s.Ports[internal] = host
		}
	}

	if class.Notebook || class.Studio {
		if pw := c.Env[util.EnvPassword]; pw != "" {
			s.CredentialHash = util.HashCredential(pw)
		}
	}
	if class.Notebook {
		if host, ok := s.Ports[catalog.NotebookPort]; ok {
			s.NotebookURL = fmt.Sprintf("%s:%d", i.baseURL, host)
		}
	}
	if class.Studio {
		if host, ok := s.Ports[catalog.StudioPort]; ok {
			s.StudioURL = fmt.Sprintf("%s:%d", i.baseURL, host)
		}
	}
	return s
}
