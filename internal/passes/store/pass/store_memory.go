package pass

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"mountpass/internal/passes/models"
	"mountpass/pkg/platform/sentinel"
)

// InMemory keeps passes and the rows they own (coords, level, images) in
// maps keyed by id. Loaded passes are assembled from copies.
type InMemory struct {
	mu sync.RWMutex

	passes map[int64]models.Pass
	coords map[int64]models.Coords
	levels map[int64]models.Level
	images map[int64][]models.Image

	nextPassID   int64
	nextCoordsID int64
	nextLevelID  int64
	nextImageID  int64
}

// NewInMemory constructs an empty pass store.
func NewInMemory() *InMemory {
	return &InMemory{
		passes: make(map[int64]models.Pass),
		coords: make(map[int64]models.Coords),
		levels: make(map[int64]models.Level),
		images: make(map[int64][]models.Image),
	}
}

func (s *InMemory) CreateCoords(_ context.Context, c *models.Coords) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextCoordsID++
	c.ID = s.nextCoordsID
	s.coords[c.ID] = *c
	return nil
}

func (s *InMemory) UpdateCoords(_ context.Context, c *models.Coords) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.coords[c.ID]; !ok {
		return fmt.Errorf("coords %d: %w", c.ID, sentinel.ErrNotFound)
	}
	s.coords[c.ID] = *c
	return nil
}

func (s *InMemory) CreateLevel(_ context.Context, l *models.Level) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextLevelID++
	l.ID = s.nextLevelID
	s.levels[l.ID] = *l
	return nil
}

func (s *InMemory) UpdateLevel(_ context.Context, l *models.Level) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.levels[l.ID]; !ok {
		return fmt.Errorf("level %d: %w", l.ID, sentinel.ErrNotFound)
	}
	s.levels[l.ID] = *l
	return nil
}

func (s *InMemory) Create(_ context.Context, p *models.Pass) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.coords[p.CoordsID]; !ok {
		return fmt.Errorf("pass coords %d: %w", p.CoordsID, sentinel.ErrNotFound)
	}
	if _, ok := s.levels[p.LevelID]; !ok {
		return fmt.Errorf("pass level %d: %w", p.LevelID, sentinel.ErrNotFound)
	}
	for _, other := range s.passes {
		if other.CoordsID == p.CoordsID || other.LevelID == p.LevelID {
			return fmt.Errorf("pass coords or level already owned: %w", sentinel.ErrAlreadyUsed)
		}
	}
	s.nextPassID++
	p.ID = s.nextPassID
	s.passes[p.ID] = stripped(p)
	return nil
}

// Update writes scalar fields and status.
func (s *InMemory) Update(_ context.Context, p *models.Pass) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.passes[p.ID]
	if !ok {
		return fmt.Errorf("pass %d: %w", p.ID, sentinel.ErrNotFound)
	}
	current.BeautyTitle = p.BeautyTitle
	current.Title = p.Title
	current.OtherTitles = p.OtherTitles
	current.Connect = p.Connect
	current.Status = p.Status
	current.UpdateTime = p.UpdateTime
	s.passes[p.ID] = current
	return nil
}

func (s *InMemory) AddImage(_ context.Context, img *models.Image) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.passes[img.PassID]; !ok {
		return fmt.Errorf("image pass %d: %w", img.PassID, sentinel.ErrNotFound)
	}
	s.nextImageID++
	img.ID = s.nextImageID
	s.images[img.PassID] = append(s.images[img.PassID], *img)
	return nil
}

// RemoveImages detaches every image of the pass and returns what was removed.
func (s *InMemory) RemoveImages(_ context.Context, passID int64) ([]models.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := s.images[passID]
	delete(s.images, passID)
	return removed, nil
}

func (s *InMemory) FindByID(_ context.Context, id int64) (*models.Pass, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.assemble(id)
}

// FindByIDForUpdate is FindByID; the in-memory transaction lock already
// serialises writers.
func (s *InMemory) FindByIDForUpdate(ctx context.Context, id int64) (*models.Pass, error) {
	return s.FindByID(ctx, id)
}

func (s *InMemory) ListBySubmitter(_ context.Context, submitterID int64, filter models.ListFilter) ([]*models.Pass, int, error) {
	filter = filter.Normalized()
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []int64
	for id, p := range s.passes {
		if p.SubmitterID != submitterID {
			continue
		}
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b int64) int {
		pa, pb := s.passes[a], s.passes[b]
		if c := pb.AddTime.Compare(pa.AddTime); c != 0 {
			return c
		}
		return int(b - a)
	})

	total := len(ids)
	if filter.Offset >= total {
		return []*models.Pass{}, total, nil
	}
	ids = ids[filter.Offset:min(total, filter.Offset+filter.Limit)]

	out := make([]*models.Pass, 0, len(ids))
	for _, id := range ids {
		p, err := s.assemble(id)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	return out, total, nil
}

func (s *InMemory) assemble(id int64) (*models.Pass, error) {
	p, ok := s.passes[id]
	if !ok {
		return nil, fmt.Errorf("pass %d: %w", id, sentinel.ErrNotFound)
	}
	c := s.coords[p.CoordsID]
	l := s.levels[p.LevelID]
	p.Coords = &c
	p.Level = &l
	p.Images = slices.Clone(s.images[id])
	return &p, nil
}

// Snapshot captures the current contents and returns a func restoring them.
func (s *InMemory) Snapshot() func() {
	s.mu.RLock()
	passes := maps.Clone(s.passes)
	coords := maps.Clone(s.coords)
	levels := maps.Clone(s.levels)
	images := make(map[int64][]models.Image, len(s.images))
	for id, imgs := range s.images {
		images[id] = slices.Clone(imgs)
	}
	counters := [4]int64{s.nextPassID, s.nextCoordsID, s.nextLevelID, s.nextImageID}
	s.mu.RUnlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.passes, s.coords, s.levels, s.images = passes, coords, levels, images
		s.nextPassID, s.nextCoordsID, s.nextLevelID, s.nextImageID = counters[0], counters[1], counters[2], counters[3]
	}
}

func stripped(p *models.Pass) models.Pass {
	out := *p
	out.Submitter = nil
	out.Coords = nil
	out.Level = nil
	out.Images = nil
	return out
}
