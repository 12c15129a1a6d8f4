package ffmpeg

// OptionCategory groups input options.
type OptionCategory string

const (
	CategoryErrorHandle OptionCategory = "Error Handling"
	CategoryDecoding    OptionCategory = "Decoding"
)

// Option describes a configurable input option value and the ffmpeg
// arguments it expands to.
type Option struct {
	Key         string         `json:"key"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Category    OptionCategory `json:"category"`
	Args        []string       `json:"args,omitempty"`
}

// ErrorDetectionOptions lists the accepted error_detection values.
var ErrorDetectionOptions = []Option{
	{
		Key:         "ignore_err",
		Name:        "Ignore Errors",
		Description: "Keep decoding through damaged packets",
		Category:    CategoryErrorHandle,
		Args:        []string{"-err_detect", "ignore_err"},
	},
	{
		Key:         "careful",
		Name:        "Careful",
		Description: "Treat clearly invalid bitstreams as errors",
		Category:    CategoryErrorHandle,
		Args:        []string{"-err_detect", "careful"},
	},
	{
		Key:         "compliant",
		Name:        "Compliant",
		Description: "Treat bitstream standard violations as errors",
		Category:    CategoryErrorHandle,
		Args:        []string{"-err_detect", "compliant"},
	},
	{
		Key:         "aggressive",
		Name:        "Aggressive",
		Description: "Treat anything unusual as an error",
		Category:    CategoryErrorHandle,
		Args:        []string{"-err_detect", "aggressive"},
	},
	{
		Key:         "none",
		Name:        "FFmpeg Default",
		Description: "Leave error detection to ffmpeg",
		Category:    CategoryErrorHandle,
	},
}

// DecoderOptions lists the accepted decoder hints.
var DecoderOptions = []Option{
	{Key: "none", Name: "Software", Description: "Decode on the CPU", Category: CategoryDecoding},
	{Key: "auto", Name: "Auto", Description: "Let ffmpeg pick a hardware decoder", Category: CategoryDecoding, Args: []string{"-hwaccel", "auto"}},
	{Key: "vaapi", Name: "VA-API", Description: "Intel and AMD on Linux", Category: CategoryDecoding, Args: []string{"-hwaccel", "vaapi"}},
	{Key: "cuda", Name: "CUDA", Description: "NVIDIA NVDEC", Category: CategoryDecoding, Args: []string{"-hwaccel", "cuda"}},
	{Key: "qsv", Name: "Quick Sync", Description: "Intel Quick Sync Video", Category: CategoryDecoding, Args: []string{"-hwaccel", "qsv"}},
	{Key: "videotoolbox", Name: "VideoToolbox", Description: "macOS hardware decoding", Category: CategoryDecoding, Args: []string{"-hwaccel", "videotoolbox"}},
	{Key: "drm", Name: "DRM", Description: "ARM SoC decoders through DRM PRIME", Category: CategoryDecoding, Args: []string{"-hwaccel", "drm"}},
}

// GetOptionByKey looks key up in options.
func GetOptionByKey(options []Option, key string) *Option {
	for i := range options {
		if options[i].Key == key {
			return &options[i]
		}
	}
	return nil
}

func optionArgs(options []Option, key string) []string {
	if opt := GetOptionByKey(options, key); opt != nil {
		return opt.Args
	}
	return nil
}
