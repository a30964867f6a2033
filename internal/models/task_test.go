package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRoundedMean(t *testing.T) {
	tests := []struct {
		name   string
		values []int
		want   int
	}{
		{"empty", nil, 0},
		{"single", []int{80}, 80},
		{"exact", []int{80, 0}, 40},
		{"half rounds up", []int{0, 1}, 1},
		{"below half rounds down", []int{0, 0, 1}, 0},
		{"two thirds", []int{100, 100, 0}, 67},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RoundedMean(tt.values))
		})
	}
}

func TestTask_Recompute(t *testing.T) {
	task := Task{CompletionPercentage: 30}
	task.Recompute()
	assert.Equal(t, 30, task.CompletionPercentage, "tasks without entries keep their value")

	task.Statuses = []TaskOrganizationStatus{
		{OrganizationID: 1, CompletionPercentage: 80},
		{OrganizationID: 2, CompletionPercentage: 20},
	}
	task.Recompute()
	assert.Equal(t, 50, task.CompletionPercentage)
}

func TestTask_PercentageFor(t *testing.T) {
	task := Task{
		OrganizationID:       1,
		CompletionPercentage: 40,
		Statuses: []TaskOrganizationStatus{
			{OrganizationID: 2, CompletionPercentage: 90},
		},
	}

	assert.Equal(t, 90, task.PercentageFor(2))
	assert.Equal(t, 40, task.PercentageFor(1))
	assert.True(t, task.References(1))
	assert.True(t, task.References(2))
	assert.False(t, task.References(3))
}

func TestTask_IsOverdue(t *testing.T) {
	now := time.Date(2024, 3, 10, 15, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		task Task
		want bool
	}{
		{"ended yesterday", Task{EndDate: time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)}, true},
		{"ends today", Task{EndDate: time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)}, false},
		{"ends tomorrow", Task{EndDate: time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)}, false},
		{"completed in the past", Task{EndDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), CompletionPercentage: 100}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.task.IsOverdue(now))
		})
	}
}

func TestParseOrganizationType(t *testing.T) {
	typ, ok := ParseOrganizationType("VPO")
	assert.True(t, ok)
	assert.Equal(t, OrganizationTypeVPO, typ)

	typ, ok = ParseOrganizationType("кдц")
	assert.True(t, ok)
	assert.Equal(t, OrganizationTypeKDC, typ)

	_, ok = ParseOrganizationType("all")
	assert.False(t, ok)

	org := Organization{Name: `ГБУЗ НСО "ГКБ №1" КДЦ`}
	assert.True(t, org.HasType(OrganizationTypeKDC))
	assert.False(t, org.HasType(OrganizationTypeVPO))
}

func TestTask_Urgency(t *testing.T) {
	now := time.Date(2024, 3, 10, 23, 30, 0, 0, time.UTC)
	day := func(d int) time.Time { return time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC) }

	assert.Equal(t, UrgencyOverdue, Task{EndDate: day(9)}.Urgency(now))
	assert.Equal(t, UrgencyDueSoon, Task{EndDate: day(10)}.Urgency(now))
	assert.Equal(t, UrgencyDueSoon, Task{EndDate: day(13)}.Urgency(now))
	assert.Equal(t, UrgencyOnTrack, Task{EndDate: day(14)}.Urgency(now))
	assert.Equal(t, UrgencyCompleted, Task{EndDate: day(1), CompletionPercentage: 100}.Urgency(now))
	assert.Equal(t, -1, DaysLeft(day(9), now))
}
