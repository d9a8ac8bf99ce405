// Package storage defines persistence contracts for the dice service.
package storage

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound indicates a requested roll record is missing.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists indicates a roll with the same id was already stored.
	ErrAlreadyExists = errors.New("record already exists")
)

// RollRecord is one evaluated roll as kept in history.
type RollRecord struct {
	ID        string
	Notation  string
	Label     string
	Preset    string
	Total     int
	Modifier  int
	Breakdown string
	// Seed, SeedSource and RollMode are enough to replay the roll.
	Seed       int64
	SeedSource string
	RollMode   string
	CreatedAt  time.Time
}

// RollStore persists roll history.
type RollStore interface {
	PutRoll(ctx context.Context, record RollRecord) error
	GetRoll(ctx context.Context, id string) (RollRecord, error)
	// ListRecentRolls returns at most limit rolls, newest first.
	ListRecentRolls(ctx context.Context, limit int) ([]RollRecord, error)
}
