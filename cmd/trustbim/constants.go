package main

// Default limits for CLI commands.
const (
	DefaultReviewLimit = 50
	DefaultRunsLimit   = 20
	DefaultSearchLimit = 5
)
