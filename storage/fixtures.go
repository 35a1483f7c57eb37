package storage

import (
	"context"
	"fmt"
)

// seedTasks are demo rows for local development.
var seedTasks = []NewTask{
	{
		Title:        "Walk two golden retrievers",
		Description:  "One hour around the park, leashes provided.",
		Reward:       "0.02",
		Location:     "Mission Dolores Park",
		Category:     "errands",
		Contact:      "@dogposter",
		PosterEmail:  "poster@example.com",
		PosterWallet: "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
	},
	{
		Title:        "Assemble flat-pack bookshelf",
		Description:  "Tools on site, photo of the result required.",
		Reward:       "0.05",
		Location:     "Sunset District",
		Category:     "handiwork",
		Contact:      "@shelfposter",
		PosterEmail:  "shelves@example.com",
		PosterWallet: "0xcccccccccccccccccccccccccccccccccccccccc",
	},
}

// seedFixtures inserts demo tasks once into an empty table.
func (s *PGStore) seedFixtures(ctx context.Context) error {
	var count int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM tasks`).Scan(&count); err != nil {
		return fmt.Errorf("seed fixtures: %w", err)
	}
	if count > 0 {
		return nil
	}
	for _, fields := range seedTasks {
		if _, err := s.Insert(ctx, fields); err != nil {
			return fmt.Errorf("seed fixtures: %w", err)
		}
	}
	return nil
}

// SeedMemory loads the same demo rows into a memory store.
func SeedMemory(ctx context.Context, s *MemoryStore) error {
	for _, fields := range seedTasks {
		if _, err := s.Insert(ctx, fields); err != nil {
			return err
		}
	}
	return nil
}
