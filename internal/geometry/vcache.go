package geometry

import stdmath "math"

// Forsyth's linear-speed vertex cache optimization.
const (
	cacheSize         = 32
	cacheDecayPower   = 1.5
	lastTriangleScore = 0.75
	valenceBoostScale = 2.0
	valenceBoostPower = 0.5
)

func vertexScore(cachePosition, valence int) float32 {
	if valence == 0 {
		return -1
	}
	var score float64
	if cachePosition >= 0 {
		if cachePosition < 3 {
			score = lastTriangleScore
		} else {
			scaler := 1.0 / float64(cacheSize-3)
			score = stdmath.Pow(1-float64(cachePosition-3)*scaler, cacheDecayPower)
		}
	}
	score += valenceBoostScale * stdmath.Pow(float64(valence), -valenceBoostPower)
	return float32(score)
}

// optimizeVertexCache returns indices with triangles reordered so that
// consecutive triangles reuse recently transformed vertices. Ties go to the
// first candidate found walking the cache front to back.
func optimizeVertexCache(indices []uint32, vertexCount int) []uint32 {
	triangleCount := len(indices) / 3
	if triangleCount == 0 {
		return indices
	}

	// Per-vertex list of triangles not yet emitted, in triangle order.
	adjacency := make([][]uint32, vertexCount)
	for t := 0; t < triangleCount; t++ {
		for _, v := range indices[t*3 : t*3+3] {
			adjacency[v] = append(adjacency[v], uint32(t))
		}
	}

	vertexScores := make([]float32, vertexCount)
	cachePositions := make([]int, vertexCount)
	for v := range vertexScores {
		cachePositions[v] = -1
		vertexScores[v] = vertexScore(-1, len(adjacency[v]))
	}

	emitted := make([]bool, triangleCount)
	triangleScores := make([]float32, triangleCount)
	for t := 0; t < triangleCount; t++ {
		for _, v := range indices[t*3 : t*3+3] {
			triangleScores[t] += vertexScores[v]
		}
	}

	out := make([]uint32, 0, len(indices))
	cache := make([]uint32, 0, cacheSize+3)
	next := make([]uint32, 0, cacheSize+3)
	cursor := 0
	best := -1

	for len(out) < len(indices) {
		if best < 0 {
			for emitted[cursor] {
				cursor++
			}
			best = cursor
		}

		tri := indices[best*3 : best*3+3]
		out = append(out, tri...)
		emitted[best] = true
		for _, v := range tri {
			adjacency[v] = removeTriangle(adjacency[v], uint32(best))
		}

		next = append(next[:0], tri...)
		for _, v := range cache {
			if v != tri[0] && v != tri[1] && v != tri[2] {
				next = append(next, v)
			}
		}
		cache, next = next, cache

		for i, v := range cache {
			pos := i
			if i >= cacheSize {
				pos = -1
			}
			cachePositions[v] = pos
			vertexScores[v] = vertexScore(pos, len(adjacency[v]))
		}
		for _, v := range cache {
			for _, t := range adjacency[v] {
				i := int(t) * 3
				triangleScores[t] = vertexScores[indices[i]] + vertexScores[indices[i+1]] + vertexScores[indices[i+2]]
			}
		}
		if len(cache) > cacheSize {
			cache = cache[:cacheSize]
		}

		best = -1
		bestScore := float32(-1)
		for _, v := range cache {
			for _, t := range adjacency[v] {
				if triangleScores[t] > bestScore {
					best, bestScore = int(t), triangleScores[t]
				}
			}
		}
	}
	return out
}

func removeTriangle(list []uint32, t uint32) []uint32 {
	for i, x := range list {
		if x == t {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}
