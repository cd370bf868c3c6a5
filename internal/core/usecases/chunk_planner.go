package usecases

// Chunk is one LIMIT/OFFSET window of an export run.
type Chunk struct {
	Index  int
	Offset int
	Limit  int
}

// ChunkPlan is the batch breakdown for one side of a run (records or
// deletions).
type ChunkPlan struct {
	Chunks   []Chunk
	Total    int
	Parallel bool
}

// PlanChunks splits total rows into windows of at most chunkSize.
// Serial plans must be executed in index order; parallel plans may run
// all windows concurrently.
func PlanChunks(total, chunkSize int, parallel bool) ChunkPlan {
	if chunkSize <= 0 {
		chunkSize = 1
	}

	plan := ChunkPlan{Total: total, Parallel: parallel}
	for offset := 0; offset < total; offset += chunkSize {
		limit := chunkSize
		if offset+limit > total {
			limit = total - offset
		}
		plan.Chunks = append(plan.Chunks, Chunk{
			Index:  len(plan.Chunks),
			Offset: offset,
			Limit:  limit,
		})
	}
	return plan
}
