// Package scoring classifies round answers and computes their point values.
package scoring

import (
	"github.com/mcdev12/basta/go/internal/models"
	"github.com/mcdev12/basta/go/internal/textnorm"
)

const (
	PointsValid     = 100
	PointsDuplicate = 50
)

// Input is everything needed to resolve a round.
type Input struct {
	Players      []models.Player
	Categories   []string
	Answers      models.Answers
	Votes        models.Votes
	Letter       string
	StrictLetter bool
}

// Threshold returns how many challenge votes reject an answer when
// activeConnected players are connected. The judged player is not part of the jury.
func Threshold(activeConnected int) int {
	jury := activeConnected - 1
	if jury < 0 {
		jury = 0
	}
	return jury/2 + 1
}

// Classify resolves every player x category pair independently.
func Classify(in Input) models.RoundResults {
	connected := 0
	for _, p := range in.Players {
		if p.IsConnected {
			connected++
		}
	}
	threshold := Threshold(connected)

	// category -> normalized key -> connected player ids holding it
	holders := make(map[string]map[string][]string, len(in.Categories))
	for _, category := range in.Categories {
		byKey := map[string][]string{}
		for _, p := range in.Players {
			if !p.IsConnected {
				continue
			}
			key := textnorm.Key(in.Answers[p.ID][category])
			if key == "" {
				continue
			}
			byKey[key] = append(byKey[key], p.ID)
		}
		holders[category] = byKey
	}

	results := make(models.RoundResults, len(in.Players))
	for _, p := range in.Players {
		byCat := make(map[string]models.AnswerResult, len(in.Categories))
		for _, category := range in.Categories {
			answer := in.Answers[p.ID][category]
			votes := countVotes(in.Votes[p.ID][category], p.ID)
			byCat[category] = classifyOne(answer, votes, threshold, p.ID, holders[category], in.Letter, in.StrictLetter)
		}
		results[p.ID] = byCat
	}
	return results
}

// RoundTotal sums the points a player earned in a resolved round.
func RoundTotal(byCat map[string]models.AnswerResult) int {
	total := 0
	for _, r := range byCat {
		total += r.Points
	}
	return total
}

func classifyOne(answer string, votes, threshold int, playerID string, byKey map[string][]string, letter string, strict bool) models.AnswerResult {
	if textnorm.IsBlank(answer) {
		return models.AnswerResult{Answer: answer, Status: models.AnswerStatusEmpty}
	}
	result := models.AnswerResult{Answer: answer, Votes: votes}

	if votes >= threshold {
		result.Status = models.AnswerStatusRejected
		return result
	}
	if strict && letter != "" && textnorm.FirstLetter(answer) != textnorm.FirstLetter(letter) {
		result.Status = models.AnswerStatusRejected
		return result
	}

	for _, holder := range byKey[textnorm.Key(answer)] {
		if holder != playerID {
			result.Status = models.AnswerStatusDuplicate
			result.Points = PointsDuplicate
			return result
		}
	}

	result.Status = models.AnswerStatusValid
	result.Points = PointsValid
	return result
}

func countVotes(voters []string, target string) int {
	n := 0
	seen := make(map[string]struct{}, len(voters))
	for _, v := range voters {
		if v == target {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		n++
	}
	return n
}
