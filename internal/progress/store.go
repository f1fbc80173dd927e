// Package progress persists per-reader statistics across stories: how many
// stories they finished, their reading streak, and the achievements those
// unlock.
package progress

import (
	"context"
	"time"
)

// Achievement identifiers.
const (
	AchFirstStory  = "first_story"
	AchSpeedReader = "speed_reader"
	AchStoryLover  = "story_lover"
)

// streakWindow is how long a streak survives between finished stories.
const streakWindow = 48 * time.Hour

// Profile is one reader's accumulated progress.
type Profile struct {
	UserID           string   `dynamodbav:"-" json:"user_id"`
	StoriesCompleted int      `dynamodbav:"storiesCompleted" json:"stories_completed"`
	ScenesRead       int      `dynamodbav:"scenesRead" json:"scenes_read"`
	CurrentStreak    int      `dynamodbav:"currentStreak" json:"current_streak"`
	LastStoryAt      int64    `dynamodbav:"lastStoryAt" json:"last_story_at"`
	Level            int      `dynamodbav:"level" json:"level"`
	Achievements     []string `dynamodbav:"achievements" json:"achievements"`
}

// StoryRecord is one finished story in a reader's history.
type StoryRecord struct {
	SessionID        string `dynamodbav:"-" json:"session_id"`
	Title            string `dynamodbav:"title" json:"title"`
	Theme            string `dynamodbav:"theme" json:"theme"`
	SceneCount       int    `dynamodbav:"sceneCount" json:"scene_count"`
	CompiledAssetKey string `dynamodbav:"compiledAssetKey,omitempty" json:"compiled_asset_key,omitempty"`
	CompletedAt      int64  `dynamodbav:"completedAt" json:"completed_at"`
}

// Store persists reader progress.
type Store interface {
	// GetProfile returns nil, nil when the reader has no recorded progress.
	GetProfile(ctx context.Context, userID string) (*Profile, error)
	// RecordStory appends a finished story and returns the updated profile.
	RecordStory(ctx context.Context, userID string, rec *StoryRecord) (*Profile, error)
	ListStories(ctx context.Context, userID string) ([]*StoryRecord, error)
}

// Level derives a reader's level from finished stories: every 3 stories is
// one level, starting at level 1.
func Level(storiesCompleted int) int {
	return storiesCompleted/3 + 1
}

// EvaluateAchievements returns the full achievement set a profile has earned.
// Achievements are never revoked; callers union this with what is already
// stored.
func EvaluateAchievements(p *Profile) []string {
	var earned []string
	if p.StoriesCompleted >= 1 {
		earned = append(earned, AchFirstStory)
	}
	if p.StoriesCompleted >= 5 {
		earned = append(earned, AchSpeedReader)
	}
	if p.CurrentStreak >= 5 {
		earned = append(earned, AchStoryLover)
	}
	return earned
}

// advanceStreak applies one finished story to the streak counter: stories
// within the window extend it, a longer gap restarts it.
func advanceStreak(p *Profile, now time.Time) {
	last := time.Unix(p.LastStoryAt, 0)
	if p.LastStoryAt > 0 && now.Sub(last) <= streakWindow {
		p.CurrentStreak++
	} else {
		p.CurrentStreak = 1
	}
	p.LastStoryAt = now.Unix()
}

// applyStory folds a finished story into a profile: counters, streak, level,
// achievements.
func applyStory(p *Profile, rec *StoryRecord, now time.Time) {
	p.StoriesCompleted++
	p.ScenesRead += rec.SceneCount
	advanceStreak(p, now)
	p.Level = Level(p.StoriesCompleted)
	p.Achievements = mergeAchievements(p.Achievements, EvaluateAchievements(p))
}

func mergeAchievements(existing, earned []string) []string {
	seen := make(map[string]bool, len(existing))
	merged := append([]string(nil), existing...)
	for _, a := range existing {
		seen[a] = true
	}
	for _, a := range earned {
		if !seen[a] {
			merged = append(merged, a)
			seen[a] = true
		}
	}
	return merged
}
