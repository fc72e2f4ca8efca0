package domain

import (
	"testing"
	"time"
)

func TestSubmissionIsMissing(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	past := at("2024-05-01T00:00:00Z")
	future := at("2024-07-01T00:00:00Z")
	submitted := at("2024-05-02T00:00:00Z")

	testCases := []struct {
		name     string
		sub      *SubmissionInfo
		dueAt    *time.Time
		expected bool
	}{
		{"explicit flag", &SubmissionInfo{Missing: true}, future, true},
		{"submitted after due date", &SubmissionInfo{SubmittedAt: submitted, Late: true}, past, false},
		{"nothing submitted, past due", &SubmissionInfo{}, past, true},
		{"nothing submitted, due later", &SubmissionInfo{}, future, false},
		{"no submission record, past due", nil, past, true},
		{"no due date", nil, nil, false},
	}

	for _, tc := range testCases {
		if got := tc.sub.IsMissing(tc.dueAt, now); got != tc.expected {
			t.Errorf("%s: IsMissing() = %v, want %v", tc.name, got, tc.expected)
		}
	}
}

func TestSubmissionIsGraded(t *testing.T) {
	score := 8.0
	grade := "B"
	blank := " "

	var none *SubmissionInfo
	if none.IsGraded() {
		t.Error("Expected nil submission not to be graded")
	}
	if !(&SubmissionInfo{Score: &score}).IsGraded() {
		t.Error("Expected scored submission to be graded")
	}
	if !(&SubmissionInfo{Grade: &grade}).IsGraded() {
		t.Error("Expected lettered submission to be graded")
	}
	if (&SubmissionInfo{Grade: &blank}).IsGraded() {
		t.Error("Expected blank grade not to count")
	}
}

func TestAnnouncementCourseID(t *testing.T) {
	testCases := []struct {
		code   string
		id     int64
		wantOK bool
	}{
		{"course_123", 123, true},
		{" course_7 ", 7, true},
		{"group_5", 0, false},
		{"course_abc", 0, false},
		{"", 0, false},
	}

	for _, tc := range testCases {
		id, ok := Announcement{ContextCode: tc.code}.CourseID()
		if id != tc.id || ok != tc.wantOK {
			t.Errorf("CourseID(%q) = (%d, %v), want (%d, %v)", tc.code, id, ok, tc.id, tc.wantOK)
		}
	}
}
