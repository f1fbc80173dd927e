package progress

import (
	"reflect"
	"testing"
	"time"
)

func TestLevel(t *testing.T) {
	tests := []struct {
		stories int
		want    int
	}{
		{0, 1},
		{1, 1},
		{2, 1},
		{3, 2},
		{5, 2},
		{6, 3},
		{30, 11},
	}

	for _, tt := range tests {
		if got := Level(tt.stories); got != tt.want {
			t.Errorf("Level(%d) = %d, want %d", tt.stories, got, tt.want)
		}
	}
}

func TestEvaluateAchievements(t *testing.T) {
	tests := []struct {
		name    string
		profile Profile
		want    []string
	}{
		{"none", Profile{}, nil},
		{"first story", Profile{StoriesCompleted: 1}, []string{AchFirstStory}},
		{"speed reader", Profile{StoriesCompleted: 5}, []string{AchFirstStory, AchSpeedReader}},
		{"story lover", Profile{StoriesCompleted: 2, CurrentStreak: 5}, []string{AchFirstStory, AchStoryLover}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EvaluateAchievements(&tt.profile)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAdvanceStreakWithinWindow(t *testing.T) {
	now := time.Now()
	p := &Profile{CurrentStreak: 3, LastStoryAt: now.Add(-24 * time.Hour).Unix()}

	advanceStreak(p, now)

	if p.CurrentStreak != 4 {
		t.Errorf("expected streak 4, got %d", p.CurrentStreak)
	}
}

func TestAdvanceStreakAfterGap(t *testing.T) {
	now := time.Now()
	p := &Profile{CurrentStreak: 7, LastStoryAt: now.Add(-72 * time.Hour).Unix()}

	advanceStreak(p, now)

	if p.CurrentStreak != 1 {
		t.Errorf("expected streak reset to 1, got %d", p.CurrentStreak)
	}
}

func TestApplyStory(t *testing.T) {
	now := time.Now()
	p := &Profile{
		StoriesCompleted: 4,
		ScenesRead:       20,
		CurrentStreak:    4,
		LastStoryAt:      now.Add(-12 * time.Hour).Unix(),
		Achievements:     []string{AchFirstStory},
	}

	applyStory(p, &StoryRecord{SessionID: "s", SceneCount: 6}, now)

	if p.StoriesCompleted != 5 {
		t.Errorf("expected 5 stories, got %d", p.StoriesCompleted)
	}
	if p.ScenesRead != 26 {
		t.Errorf("expected 26 scenes, got %d", p.ScenesRead)
	}
	if p.CurrentStreak != 5 {
		t.Errorf("expected streak 5, got %d", p.CurrentStreak)
	}
	if p.Level != 2 {
		t.Errorf("expected level 2, got %d", p.Level)
	}

	want := []string{AchFirstStory, AchSpeedReader, AchStoryLover}
	if !reflect.DeepEqual(p.Achievements, want) {
		t.Errorf("achievements = %v, want %v", p.Achievements, want)
	}
}

func TestMergeAchievementsNoDuplicates(t *testing.T) {
	got := mergeAchievements([]string{AchFirstStory}, []string{AchFirstStory, AchSpeedReader})
	want := []string{AchFirstStory, AchSpeedReader}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}
