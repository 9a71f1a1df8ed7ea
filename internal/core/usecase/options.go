package usecase

import "time"

// PipelineOptions tunes the pipeline stages. Zero values fall back to the defaults.
type PipelineOptions struct {
	CallTimeout     time.Duration
	PipelineTimeout time.Duration
	RetryBackoff    time.Duration

	ClassificationTemperature float32
	SimplificationTemperature float32
	GuideTemperature          float32
	SafetyTemperature         float32

	// ChunkChars is the soft chunk size for simplification; HardChunkChars caps a
	// single section before it is truncated.
	ChunkChars     int
	HardChunkChars int
}

func DefaultPipelineOptions() PipelineOptions {
	return PipelineOptions{
		CallTimeout:               60 * time.Second,
		PipelineTimeout:           5 * time.Minute,
		RetryBackoff:              500 * time.Millisecond,
		ClassificationTemperature: 0.0,
		SimplificationTemperature: 0.3,
		GuideTemperature:          0.25,
		SafetyTemperature:         0.0,
		ChunkChars:                12000,
		HardChunkChars:            16000,
	}
}

func (o PipelineOptions) withDefaults() PipelineOptions {
	def := DefaultPipelineOptions()
	if o.CallTimeout <= 0 {
		o.CallTimeout = def.CallTimeout
	}
	if o.PipelineTimeout <= 0 {
		o.PipelineTimeout = def.PipelineTimeout
	}
	if o.RetryBackoff < 0 {
		o.RetryBackoff = 0
	}
	if o.ChunkChars <= 0 {
		o.ChunkChars = def.ChunkChars
	}
	if o.HardChunkChars <= 0 {
		o.HardChunkChars = def.HardChunkChars
	}
	if o.HardChunkChars < o.ChunkChars {
		o.HardChunkChars = o.ChunkChars
	}
	return o
}
