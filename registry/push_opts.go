package registry

import "github.com/aldnoah/modkit/core/modfile"

// PushOption configures a Push operation.
type PushOption func(*pushConfig)

type pushConfig struct {
	tags        []string
	annotations map[string]string
	encodeOpts  []modfile.EncodeOption
}

// WithTags applies additional tags to the pushed manifest.
//
// The primary tag from the ref is always applied. These tags are applied
// after the initial push succeeds.
func WithTags(tags ...string) PushOption {
	return func(cfg *pushConfig) {
		cfg.tags = append(cfg.tags, tags...)
	}
}

// WithAnnotations sets custom annotations on the manifest.
//
// The mod annotations and org.opencontainers.image.created are set
// automatically and can be overridden.
func WithAnnotations(annotations map[string]string) PushOption {
	return func(cfg *pushConfig) {
		if cfg.annotations == nil {
			cfg.annotations = make(map[string]string)
		}
		for k, v := range annotations {
			cfg.annotations[k] = v
		}
	}
}

// WithEncodeOptions passes options to modfile.Encode.
func WithEncodeOptions(opts ...modfile.EncodeOption) PushOption {
	return func(cfg *pushConfig) {
		cfg.encodeOpts = append(cfg.encodeOpts, opts...)
	}
}
