package idgen

import "github.com/google/uuid"

// Generator hands out opaque unique identifiers.
type Generator interface {
	Generate() string
}

type UUID struct{}

func (UUID) Generate() string {
	return uuid.New().String()
}

// Func adapts a plain function to a Generator.
type Func func() string

func (f Func) Generate() string {
	return f()
}
