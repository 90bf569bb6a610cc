package jobs

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Default style values applied at admission so handlers never re-check.
const (
	DefaultFontSize     = 48
	DefaultFontColor    = "white"
	DefaultLineSpacing  = 10
	DefaultOutlineColor = "black"
	DefaultOutlineWidth = 2
	DefaultOpacity      = 0.5
	DefaultScale        = 0.15
	DefaultVolume       = 1.0
)

// Position locates an overlaid element on the frame, either by named anchor
// or by coordinates. Coordinate values at or below 100 are interpreted as
// percentages of the frame, larger values as pixels.
type Position struct {
	Anchor string
	X      float64
	Y      float64
	Coords bool
}

var namedAnchors = map[string]struct{}{
	"top-left": {}, "top": {}, "top-right": {},
	"left": {}, "center": {}, "right": {},
	"bottom-left": {}, "bottom": {}, "bottom-right": {},
}

// UnmarshalJSON accepts either a named anchor string or an {x, y} object.
func (p *Position) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, `"`) {
		var anchor string
		if err := json.Unmarshal(data, &anchor); err != nil {
			return err
		}
		anchor = strings.ToLower(strings.TrimSpace(anchor))
		anchor = strings.ReplaceAll(anchor, "_", "-")
		if _, ok := namedAnchors[anchor]; !ok {
			return fmt.Errorf("unknown position anchor %q", anchor)
		}
		*p = Position{Anchor: anchor}
		return nil
	}
	var coords struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	}
	if err := json.Unmarshal(data, &coords); err != nil {
		return err
	}
	*p = Position{X: coords.X, Y: coords.Y, Coords: true}
	return nil
}

// MarshalJSON emits the same wire forms UnmarshalJSON accepts.
func (p Position) MarshalJSON() ([]byte, error) {
	if p.Coords {
		return json.Marshal(struct {
			X float64 `json:"x"`
			Y float64 `json:"y"`
		}{p.X, p.Y})
	}
	return json.Marshal(p.Anchor)
}

// IsZero reports whether the position was absent from the payload.
func (p Position) IsZero() bool {
	return !p.Coords && p.Anchor == ""
}

// MergeSpec concatenates two or more sources into one output.
type MergeSpec struct {
	VideoURLs []string
}

// CaptionLine is one drawn line of text with its own placement.
type CaptionLine struct {
	Text     string
	Position Position
	FontSize int
	Color    string
}

// CaptionSpec overlays styled text lines onto a single source.
type CaptionSpec struct {
	Input        string
	Lines        []CaptionLine
	LineSpacing  int
	Outline      bool
	OutlineColor string
	OutlineWidth int
}

// AddAudioSpec mixes an overlay audio track into a video's soundtrack.
type AddAudioSpec struct {
	Video  string
	Audio  string
	Volume float64
	Start  float64
}

// WatermarkSpec alpha-blends an image over every frame.
type WatermarkSpec struct {
	Video    string
	Image    string
	Position Position
	Opacity  float64
	Scale    float64
}

// OverlaySpec composites a secondary video for a bounded time window.
type OverlaySpec struct {
	Video    string
	Overlay  string
	Position Position
	Start    float64
	End      float64
}

// RemuxSpec is the synchronous container-copy operation. Bucket defaults are
// applied by the caller from configuration before Validate runs.
type RemuxSpec struct {
	InputBucket  string
	InputKey     string
	OutputBucket string
	OutputKey    string
}

// ApplyDefaults fills missing buckets from configuration and derives the
// output key from the input key.
func (r *RemuxSpec) ApplyDefaults(inputBucket, outputBucket string) {
	if r.InputBucket == "" {
		r.InputBucket = inputBucket
	}
	if r.OutputBucket == "" {
		r.OutputBucket = outputBucket
	}
	if r.OutputKey == "" && r.InputKey != "" {
		r.OutputKey = "processed/" + r.InputKey
	}
}

// Validate checks the remux field set after defaults were applied. The
// message is the exact text remux clients match on.
func (r *RemuxSpec) Validate() error {
	if r.InputBucket == "" || r.InputKey == "" || r.OutputBucket == "" || r.OutputKey == "" {
		return Wrap(ErrValidation, "", "",
			"Missing required fields: input_bucket, input_key, output_bucket, output_key", nil)
	}
	return nil
}

// Request is a fully parsed and validated job. Exactly one of the
// per-operation spec fields matching Operation is non-nil.
type Request struct {
	JobID     string
	Operation Operation
	Merge     *MergeSpec
	Caption   *CaptionSpec
	AddAudio  *AddAudioSpec
	Watermark *WatermarkSpec
	Overlay   *OverlaySpec
	Remux     *RemuxSpec

	raw []byte
}

// Raw returns the original payload bytes for enqueueing and error echoes.
func (r *Request) Raw() []byte {
	return append([]byte(nil), r.raw...)
}

// InputRefs lists the caller-visible source references, used for the queued
// status record's metadata.
func (r *Request) InputRefs() []string {
	switch r.Operation {
	case OpMerge:
		return append([]string(nil), r.Merge.VideoURLs...)
	case OpCaption:
		return []string{r.Caption.Input}
	case OpAddAudio:
		return []string{r.AddAudio.Video, r.AddAudio.Audio}
	case OpWatermark:
		return []string{r.Watermark.Video, r.Watermark.Image}
	case OpOverlay:
		return []string{r.Overlay.Video, r.Overlay.Overlay}
	case OpRemux:
		return []string{r.Remux.InputBucket + "/" + r.Remux.InputKey}
	default:
		return nil
	}
}

type wireSource struct {
	URL string `json:"url"`
}

type wireCaption struct {
	Text         string     `json:"text"`
	Lines        []wireLine `json:"lines"`
	Position     *Position  `json:"position"`
	FontSize     int        `json:"font_size"`
	FontColor    string     `json:"font_color"`
	LineSpacing  *int       `json:"line_spacing"`
	Outline      bool       `json:"outline"`
	OutlineColor string     `json:"outline_color"`
	OutlineWidth int        `json:"outline_width"`
}

type wireLine struct {
	Text      string    `json:"text"`
	Position  *Position `json:"position"`
	FontSize  int       `json:"font_size"`
	FontColor string    `json:"font_color"`
}

type wireAudio struct {
	URL       string   `json:"url"`
	Volume    *float64 `json:"volume"`
	StartTime float64  `json:"start_time"`
}

type wireWatermark struct {
	URL      string    `json:"url"`
	Position *Position `json:"position"`
	Opacity  *float64  `json:"opacity"`
	Scale    *float64  `json:"scale"`
}

type wireOverlay struct {
	URL       string    `json:"url"`
	Position  *Position `json:"position"`
	StartTime float64   `json:"start_time"`
	EndTime   float64   `json:"end_time"`
}

type wireRequest struct {
	JobID     string `json:"job_id"`
	Operation string `json:"operation"`

	VideoURLs []string       `json:"video_urls"`
	Input     *wireSource    `json:"input"`
	Caption   *wireCaption   `json:"caption"`
	Video     *wireSource    `json:"video"`
	Audio     *wireAudio     `json:"audio"`
	Watermark *wireWatermark `json:"watermark"`
	Overlay   *wireOverlay   `json:"overlay"`

	InputBucket  string `json:"input_bucket"`
	InputKey     string `json:"input_key"`
	OutputBucket string `json:"output_bucket"`
	OutputKey    string `json:"output_key"`
}

// ParseRequest decodes a submission or queue payload into a typed Request.
// When the payload names no operation, fallback is used: queue deliveries
// default to merge, direct invocations to remux.
func ParseRequest(body []byte, fallback Operation) (*Request, error) {
	var wire wireRequest
	if len(body) > 0 {
		if err := json.Unmarshal(body, &wire); err != nil {
			return nil, Wrap(ErrValidation, "admission", "", "invalid JSON payload", err)
		}
	}

	opValue := strings.TrimSpace(wire.Operation)
	var op Operation
	if opValue == "" {
		op = fallback
	} else {
		parsed, err := ParseOperation(opValue)
		if err != nil {
			return nil, Wrap(ErrValidation, "admission", "", err.Error(), nil)
		}
		op = parsed
	}

	req := &Request{
		JobID:     strings.TrimSpace(wire.JobID),
		Operation: op,
		raw:       append([]byte(nil), body...),
	}

	var err error
	switch op {
	case OpMerge:
		req.Merge, err = parseMerge(wire)
	case OpCaption:
		req.Caption, err = parseCaption(wire)
	case OpAddAudio:
		req.AddAudio, err = parseAddAudio(wire)
	case OpWatermark:
		req.Watermark, err = parseWatermark(wire)
	case OpOverlay:
		req.Overlay, err = parseOverlay(wire)
	case OpRemux:
		req.Remux = &RemuxSpec{
			InputBucket:  strings.TrimSpace(wire.InputBucket),
			InputKey:     strings.TrimSpace(wire.InputKey),
			OutputBucket: strings.TrimSpace(wire.OutputBucket),
			OutputKey:    strings.TrimSpace(wire.OutputKey),
		}
	default:
		err = Wrap(ErrValidation, "admission", "", fmt.Sprintf("unsupported operation %q", opValue), nil)
	}
	if err != nil {
		return nil, err
	}
	return req, nil
}

func parseMerge(wire wireRequest) (*MergeSpec, error) {
	urls := make([]string, 0, len(wire.VideoURLs))
	for _, u := range wire.VideoURLs {
		if u = strings.TrimSpace(u); u != "" {
			urls = append(urls, u)
		}
	}
	if len(urls) < 2 {
		return nil, Wrap(ErrValidation, "admission", string(OpMerge), "merge requires at least 2 video_urls", nil)
	}
	return &MergeSpec{VideoURLs: urls}, nil
}

func parseCaption(wire wireRequest) (*CaptionSpec, error) {
	if wire.Input == nil || strings.TrimSpace(wire.Input.URL) == "" {
		return nil, Wrap(ErrValidation, "admission", string(OpCaption), "input.url is required", nil)
	}
	if wire.Caption == nil {
		return nil, Wrap(ErrValidation, "admission", string(OpCaption), "caption config is required", nil)
	}

	cfg := wire.Caption
	basePosition := Position{Anchor: "bottom"}
	if cfg.Position != nil {
		basePosition = *cfg.Position
	}
	baseSize := cfg.FontSize
	if baseSize <= 0 {
		baseSize = DefaultFontSize
	}
	baseColor := strings.TrimSpace(cfg.FontColor)
	if baseColor == "" {
		baseColor = DefaultFontColor
	}

	var lines []CaptionLine
	switch {
	case len(cfg.Lines) > 0:
		for _, line := range cfg.Lines {
			text := strings.TrimSpace(line.Text)
			if text == "" {
				continue
			}
			entry := CaptionLine{Text: text, Position: basePosition, FontSize: baseSize, Color: baseColor}
			if line.Position != nil {
				entry.Position = *line.Position
			}
			if line.FontSize > 0 {
				entry.FontSize = line.FontSize
			}
			if c := strings.TrimSpace(line.FontColor); c != "" {
				entry.Color = c
			}
			lines = append(lines, entry)
		}
	case strings.TrimSpace(cfg.Text) != "":
		for _, part := range strings.Split(cfg.Text, "\n") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			lines = append(lines, CaptionLine{Text: part, Position: basePosition, FontSize: baseSize, Color: baseColor})
		}
	}
	if len(lines) == 0 {
		return nil, Wrap(ErrValidation, "admission", string(OpCaption), "caption.text is required", nil)
	}

	spec := &CaptionSpec{
		Input:        strings.TrimSpace(wire.Input.URL),
		Lines:        lines,
		LineSpacing:  DefaultLineSpacing,
		Outline:      cfg.Outline,
		OutlineColor: strings.TrimSpace(cfg.OutlineColor),
		OutlineWidth: cfg.OutlineWidth,
	}
	if cfg.LineSpacing != nil && *cfg.LineSpacing >= 0 {
		spec.LineSpacing = *cfg.LineSpacing
	}
	if spec.Outline {
		if spec.OutlineColor == "" {
			spec.OutlineColor = DefaultOutlineColor
		}
		if spec.OutlineWidth <= 0 {
			spec.OutlineWidth = DefaultOutlineWidth
		}
	}
	return spec, nil
}

func parseAddAudio(wire wireRequest) (*AddAudioSpec, error) {
	if wire.Video == nil || strings.TrimSpace(wire.Video.URL) == "" {
		return nil, Wrap(ErrValidation, "admission", string(OpAddAudio), "video.url is required", nil)
	}
	if wire.Audio == nil || strings.TrimSpace(wire.Audio.URL) == "" {
		return nil, Wrap(ErrValidation, "admission", string(OpAddAudio), "audio.url is required", nil)
	}
	spec := &AddAudioSpec{
		Video:  strings.TrimSpace(wire.Video.URL),
		Audio:  strings.TrimSpace(wire.Audio.URL),
		Volume: DefaultVolume,
		Start:  wire.Audio.StartTime,
	}
	if wire.Audio.Volume != nil && *wire.Audio.Volume >= 0 {
		spec.Volume = *wire.Audio.Volume
	}
	if spec.Start < 0 {
		spec.Start = 0
	}
	return spec, nil
}

func parseWatermark(wire wireRequest) (*WatermarkSpec, error) {
	if wire.Video == nil || strings.TrimSpace(wire.Video.URL) == "" {
		return nil, Wrap(ErrValidation, "admission", string(OpWatermark), "video.url is required", nil)
	}
	if wire.Watermark == nil || strings.TrimSpace(wire.Watermark.URL) == "" {
		return nil, Wrap(ErrValidation, "admission", string(OpWatermark), "watermark.url is required", nil)
	}
	spec := &WatermarkSpec{
		Video:    strings.TrimSpace(wire.Video.URL),
		Image:    strings.TrimSpace(wire.Watermark.URL),
		Position: Position{Anchor: "top-right"},
		Opacity:  DefaultOpacity,
		Scale:    DefaultScale,
	}
	if wire.Watermark.Position != nil {
		spec.Position = *wire.Watermark.Position
	}
	if wire.Watermark.Opacity != nil {
		spec.Opacity = clamp(*wire.Watermark.Opacity, 0, 1)
	}
	if wire.Watermark.Scale != nil && *wire.Watermark.Scale > 0 && *wire.Watermark.Scale <= 1 {
		spec.Scale = *wire.Watermark.Scale
	}
	return spec, nil
}

func parseOverlay(wire wireRequest) (*OverlaySpec, error) {
	if wire.Video == nil || strings.TrimSpace(wire.Video.URL) == "" {
		return nil, Wrap(ErrValidation, "admission", string(OpOverlay), "video.url is required", nil)
	}
	if wire.Overlay == nil || strings.TrimSpace(wire.Overlay.URL) == "" {
		return nil, Wrap(ErrValidation, "admission", string(OpOverlay), "overlay.url is required", nil)
	}
	spec := &OverlaySpec{
		Video:    strings.TrimSpace(wire.Video.URL),
		Overlay:  strings.TrimSpace(wire.Overlay.URL),
		Position: Position{X: 10, Y: 10, Coords: true},
		Start:    wire.Overlay.StartTime,
		End:      wire.Overlay.EndTime,
	}
	if wire.Overlay.Position != nil {
		spec.Position = *wire.Overlay.Position
	}
	if spec.Start < 0 {
		spec.Start = 0
	}
	if spec.End < spec.Start {
		spec.End = 0
	}
	return spec, nil
}

func clamp(value, low, high float64) float64 {
	if value < low {
		return low
	}
	if value > high {
		return high
	}
	return value
}
