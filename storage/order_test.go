package storage

import (
	"testing"
	"time"

	"tasksync/domain"
)

func TestSortDocumentsNullsFirstThenValueThenID(t *testing.T) {
	early := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	late := early.AddDate(0, 1, 0)
	docs := []Document{
		{ID: "late", Fields: domain.Fields{"dueDate": late}},
		{ID: "z-null", Fields: domain.Fields{"dueDate": nil}},
		{ID: "early-b", Fields: domain.Fields{"dueDate": early}},
		{ID: "missing", Fields: domain.Fields{}},
		{ID: "early-a", Fields: domain.Fields{"dueDate": &early}},
		{ID: "text", Fields: domain.Fields{"dueDate": "2023-01-01"}},
	}
	sortDocuments(docs, "dueDate")
	if got := ids(docs); !sameIDs(got, "missing", "z-null", "early-a", "early-b", "late", "text") {
		t.Fatalf("unexpected order %v", got)
	}
}
