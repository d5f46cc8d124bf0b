package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/TheClimateCorporation/S3DistVersions/pkg/objectstore"
)

func listPageOf(key string, versions ...VersionSummaryInput) *objectstore.ListPage {
	summaries := make([]objectstore.VersionSummary, len(versions))
	for i, v := range versions {
		t := v.lastModified
		summaries[i] = objectstore.VersionSummary{
			Key:          key,
			BucketName:   "src-bucket",
			VersionID:    versionID(v.id),
			LastModified: &t,
			DeleteMarker: v.deleteMarker,
		}
	}
	return &objectstore.ListPage{Summaries: summaries, Truncated: false}
}

type VersionSummaryInput struct {
	id           string
	lastModified time.Time
	deleteMarker bool
}

func TestOrchestrator_Run_SingleKeyEndToEnd(t *testing.T) {
	store := new(storeMock)
	store.On("ListVersions", mock.Anything, "src-bucket", "", int32(1000)).
		Return(listPageOf("a.txt",
			VersionSummaryInput{id: "v1", lastModified: mustTime("2024-01-01T00:00:00Z")},
			VersionSummaryInput{id: "v2", lastModified: mustTime("2024-01-10T00:00:00Z")},
		), nil)
	store.On("CopyObject", mock.Anything, objectstore.CopyInput{
		SrcBucket: "src-bucket", SrcKey: "a.txt", SrcVersionID: versionID("v1"),
		DestBucket: "dst-bucket", DestKey: "a.txt",
	}).Return(nil)

	config := RestoreConfig{
		SrcBucket:   "src-bucket",
		DestBucket:  "dst-bucket",
		RestoreTime: mustTime("2024-01-05T00:00:00Z"),
	}

	var selected []VersionRecord
	var applied []Action
	orch := Orchestrator{
		Store:     store,
		Config:    config,
		Reducers:  Reducers{Prefix: 1, Version: 1},
		Restorer:  Restorer{Store: store, Config: config},
		OnVersion: func(key string, v VersionRecord) { selected = append(selected, v) },
		OnAction:  func(key string, a Action) { applied = append(applied, a) },
	}

	result, err := orch.Run(context.Background(), []string{""})

	assert.NoError(t, err)
	assert.Equal(t, 1, result.KeysSelected)
	assert.Equal(t, 1, result.KeysRestored)
	assert.Empty(t, result.Failures)
	assert.Len(t, applied, 1)
	assert.Equal(t, ActionCopy, applied[0].Kind)
	store.AssertExpectations(t)
}

func TestOrchestrator_Run_NoopNeverReported(t *testing.T) {
	store := new(storeMock)
	store.On("ListVersions", mock.Anything, "src-bucket", "", int32(1000)).
		Return(listPageOf("a.txt",
			VersionSummaryInput{id: "v1", lastModified: mustTime("2024-01-01T00:00:00Z")},
		), nil)

	config := RestoreConfig{
		SrcBucket:   "src-bucket",
		DestBucket:  "src-bucket",
		RestoreTime: mustTime("2024-06-01T00:00:00Z"),
	}

	var applied []Action
	orch := Orchestrator{
		Store:    store,
		Config:   config,
		Reducers: Reducers{Prefix: 1, Version: 1},
		Restorer: Restorer{Store: store, Config: config},
		OnAction: func(key string, a Action) { applied = append(applied, a) },
	}

	result, err := orch.Run(context.Background(), []string{""})

	assert.NoError(t, err)
	assert.Equal(t, 1, result.KeysRestored)
	assert.Empty(t, applied)
	store.AssertNotCalled(t, "CopyObject", mock.Anything, mock.Anything)
}
