package pose

// Options are the initialization settings handed to the pose estimator on
// the client. They are fixed for the tracker and not runtime configurable.
type Options struct {
	ModelComplexity        int     `json:"modelComplexity"`
	SmoothLandmarks        bool    `json:"smoothLandmarks"`
	EnableSegmentation     bool    `json:"enableSegmentation"`
	SmoothSegmentation     bool    `json:"smoothSegmentation"`
	MinDetectionConfidence float64 `json:"minDetectionConfidence"`
	MinTrackingConfidence  float64 `json:"minTrackingConfidence"`
}

// DefaultOptions returns the estimator settings the tracker runs with.
func DefaultOptions() Options {
	return Options{
		ModelComplexity:        2,
		SmoothLandmarks:        true,
		EnableSegmentation:     false,
		SmoothSegmentation:     false,
		MinDetectionConfidence: 0.5,
		MinTrackingConfidence:  0.5,
	}
}

// CaptureSettings is the resolution requested from the camera capture
// utility when it starts.
type CaptureSettings struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func DefaultCaptureSettings() CaptureSettings {
	return CaptureSettings{Width: 640, Height: 480}
}
