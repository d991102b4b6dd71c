// Package lead defines the domain types and collaborator interfaces shared by
// the forum client, relevance filter, scorer, stores, and scan orchestrator.
package lead
