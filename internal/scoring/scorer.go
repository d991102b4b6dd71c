// Package scoring ranks leads from post popularity signals.
package scoring

import "github.com/JakeFAU/freelance-lead-finder/internal/lead"

// CommentWeight is the rank contributed by each comment.
const CommentWeight = 2

// Score returns post.Score + post.CommentCount*CommentWeight. Downvoted posts
// keep their negative score.
func Score(post lead.Post) int {
	return post.Score + post.CommentCount*CommentWeight
}
