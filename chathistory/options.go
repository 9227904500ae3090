package chathistory

import (
	"time"

	"github.com/google/uuid"
)

// IDGenerator returns a fresh conversation id
type IDGenerator func() string

type Options struct {
	ReturnLimit  int // messages returned when the caller passes no limit
	ExcludeRoles []string
	SystemPrompt string // prepended to every Transcript

	GenerateID IDGenerator
	Now        func() time.Time
}

type Option func(*Options)

func WithReturnLimit(limit int) Option {
	return func(o *Options) {
		o.ReturnLimit = limit
	}
}

// WithExcludeRoles keeps messages with these roles out of Transcript
func WithExcludeRoles(roles ...string) Option {
	return func(o *Options) {
		o.ExcludeRoles = roles
	}
}

func WithSystemPrompt(prompt string) Option {
	return func(o *Options) {
		o.SystemPrompt = prompt
	}
}

func WithGenerateID(generator IDGenerator) Option {
	return func(o *Options) {
		o.GenerateID = generator
	}
}

// WithClock replaces time.Now for conversation and message timestamps
func WithClock(now func() time.Time) Option {
	return func(o *Options) {
		o.Now = now
	}
}

// DefaultIDGenerator returns a random UUID
func DefaultIDGenerator() string {
	return uuid.New().String()
}

func DefaultOptions() *Options {
	return &Options{
		ReturnLimit: 20,
		GenerateID:  DefaultIDGenerator,
		Now:         time.Now,
	}
}
