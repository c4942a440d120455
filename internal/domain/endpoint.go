package domain

// Endpoint describes one tile dataset derived from a webconf file.
// Width, Height, Bands and Levels are nil when the Size directive did not parse.
// Values are not modified after discovery. Use Clone before changing one.
type Endpoint struct {
	Name        string    `json:"name" yaml:"name"`
	RelativeDir string    `json:"relative_dir" yaml:"relative_dir"`
	Path        string    `json:"webconf_path" yaml:"webconf_path"`
	Config      ConfigMap `json:"config" yaml:"config"`
	Width       *int      `json:"width,omitempty" yaml:"width,omitempty"`
	Height      *int      `json:"height,omitempty" yaml:"height,omitempty"`
	Bands       *int      `json:"bands,omitempty" yaml:"bands,omitempty"`
	Levels      *int      `json:"levels,omitempty" yaml:"levels,omitempty"`
}

// PathSegment is the URL path component the tile server exposes the dataset under.
func (e Endpoint) PathSegment() string {
	if e.RelativeDir != "" {
		return e.RelativeDir
	}
	return e.Name
}

// Clone returns a copy that shares no map or pointer with e.
func (e Endpoint) Clone() Endpoint {
	out := e
	if e.Config != nil {
		out.Config = e.Config.Clone()
	}
	out.Width = cloneInt(e.Width)
	out.Height = cloneInt(e.Height)
	out.Bands = cloneInt(e.Bands)
	out.Levels = cloneInt(e.Levels)
	return out
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func (e Endpoint) HasDimensions() bool {
	return e.Width != nil && e.Height != nil && e.Bands != nil
}

// LevelCount returns Levels or def when the webconf did not declare one.
func (e Endpoint) LevelCount(def int) int {
	if e.Levels == nil {
		return def
	}
	return *e.Levels
}
