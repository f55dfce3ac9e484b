// Package transform turns tracker issues into index documents.
//
// Everything here is pure: the same issue and vector always produce the
// same document, and the input issue is never modified.
package transform

import (
	"strings"
	"unicode/utf8"

	"github.com/poiesic/issueindex/core"
)

// similarityScale is the search text length, in characters, at which the
// similarity score saturates at 1.
const similarityScale = 1000.0

// SearchText is the text that is embedded and stored as search_text:
// subject, description and project name joined by single spaces, with
// surrounding whitespace removed.
func SearchText(issue *core.Issue) string {
	return strings.TrimSpace(issue.Subject + " " + issue.Description + " " + issue.ProjectName())
}

// SimilarityScore is a length-based placeholder for a real relevance
// signal: min(1, characters/1000).
func SimilarityScore(searchText string) float64 {
	return min(1.0, float64(utf8.RuneCountInString(searchText))/similarityScale)
}

// Map builds the index document for issue. vector is attached as the
// embedding field when non-nil. The only failure is a missing issue or
// identifier, reported as core.ErrMapping.
func Map(issue *core.Issue, vector []float32) (*core.IndexDocument, error) {
	if err := core.ValidateIssue(issue); err != nil {
		return nil, err
	}

	searchText := SearchText(issue)
	return &core.IndexDocument{
		ID:              issue.ID,
		Subject:         issue.Subject,
		Description:     issue.Description,
		Project:         project(issue.Project),
		Tracker:         ref(issue.Tracker),
		Status:          ref(issue.Status),
		Priority:        ref(issue.Priority),
		Author:          ref(issue.Author),
		AssignedTo:      ref(issue.AssignedTo),
		StartDate:       issue.StartDate,
		DueDate:         issue.DueDate,
		DoneRatio:       issue.DoneRatio,
		IsPrivate:       issue.IsPrivate,
		CreatedOn:       issue.CreatedOn,
		UpdatedOn:       issue.UpdatedOn,
		ClosedOn:        issue.ClosedOn,
		SimilarityScore: SimilarityScore(searchText),
		SearchText:      searchText,
		Embedding:       vector,
	}, nil
}

func ref(r *core.Ref) *core.RefDoc {
	if r == nil {
		return nil
	}
	return &core.RefDoc{ID: r.ID, Name: r.Name}
}

func project(r *core.Ref) *core.ProjectDoc {
	if r == nil {
		return nil
	}
	return &core.ProjectDoc{ID: r.ID, Name: r.Name, Identifier: r.Identifier}
}
