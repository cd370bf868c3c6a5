package usecases

import "testing"

func TestPlanChunks(t *testing.T) {
	tests := []struct {
		name      string
		total     int
		chunkSize int
		wantLens  []int
	}{
		{"empty run", 0, 500, nil},
		{"single partial chunk", 10, 500, []int{10}},
		{"exact multiple", 1000, 500, []int{500, 500}},
		{"trailing remainder", 1100, 500, []int{500, 500, 100}},
		{"chunk size one", 3, 1, []int{1, 1, 1}},
		{"zero chunk size falls back to one", 2, 0, []int{1, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := PlanChunks(tt.total, tt.chunkSize, false)

			if len(plan.Chunks) != len(tt.wantLens) {
				t.Fatalf("got %d chunks, want %d", len(plan.Chunks), len(tt.wantLens))
			}
			offset := 0
			for i, chunk := range plan.Chunks {
				if chunk.Index != i {
					t.Errorf("chunk %d has index %d", i, chunk.Index)
				}
				if chunk.Offset != offset {
					t.Errorf("chunk %d offset = %d, want %d", i, chunk.Offset, offset)
				}
				if chunk.Limit != tt.wantLens[i] {
					t.Errorf("chunk %d limit = %d, want %d", i, chunk.Limit, tt.wantLens[i])
				}
				offset += chunk.Limit
			}
			if plan.Total != tt.total {
				t.Errorf("plan total = %d, want %d", plan.Total, tt.total)
			}
		})
	}
}

func TestPlanChunksParallelFlag(t *testing.T) {
	if !PlanChunks(10, 5, true).Parallel {
		t.Error("parallel flag lost")
	}
	if PlanChunks(10, 5, false).Parallel {
		t.Error("serial plan marked parallel")
	}
}
