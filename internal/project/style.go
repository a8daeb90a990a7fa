package project

import (
	"fmt"
	"strings"

	"github.com/bozzyboy/nano-director-5/internal/services"
)

// StyleMode identifies a preset visual style.
type StyleMode string

const (
	StyleDefault     StyleMode = "DEFAULT"
	StyleCinematic   StyleMode = "CINEMATIC"
	StyleAnime       StyleMode = "ANIME"
	Style3DAnimation StyleMode = "3D_ANIMATION"
	StyleOilPainting StyleMode = "OIL_PAINTING"
	StyleWatercolor  StyleMode = "WATERCOLOR"
	StyleInkWash     StyleMode = "INK_WASH"
	StyleCyberpunk   StyleMode = "CYBERPUNK"
	StyleSteampunk   StyleMode = "STEAMPUNK"
	StyleNoir        StyleMode = "NOIR"
	StyleVintageFilm StyleMode = "VINTAGE_FILM"
	StyleClaymation  StyleMode = "CLAYMATION"
	StyleComicBook   StyleMode = "COMIC_BOOK"
	StyleFantasyArt  StyleMode = "FANTASY_ART"
	StyleCustom      StyleMode = "CUSTOM"
)

// DefaultNegativePrompt is used whenever no custom negative text is set.
const DefaultNegativePrompt = "no text, no watermark, no grid lines, no grid outlines, no dividing lines, no white borders, no black borders, no frames, no gutters, no blur, no distortion, no bad anatomy"

// StyleModes lists every style mode in presentation order.
func StyleModes() []StyleMode {
	return []StyleMode{
		StyleDefault, StyleCinematic, StyleAnime, Style3DAnimation, StyleOilPainting,
		StyleWatercolor, StyleInkWash, StyleCyberpunk, StyleSteampunk, StyleNoir,
		StyleVintageFilm, StyleClaymation, StyleComicBook, StyleFantasyArt, StyleCustom,
	}
}

// ParseStyleMode accepts mode names case-insensitively, with dashes or spaces
// in place of underscores.
func ParseStyleMode(value string) (StyleMode, error) {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	normalized = strings.NewReplacer("-", "_", " ", "_").Replace(normalized)
	mode := StyleMode(normalized)
	if !mode.Valid() {
		return "", services.Wrap(services.ErrOutOfRange, "style", "parse mode", fmt.Sprintf("unknown style mode %q", value), nil)
	}
	return mode, nil
}

// Valid reports whether m is a known style mode.
func (m StyleMode) Valid() bool {
	_, ok := m.modifier()
	return ok
}

// Modifier returns the preset prompt text for the mode. CUSTOM has no preset
// text and unknown modes resolve to the DEFAULT text.
func (m StyleMode) Modifier() string {
	if text, ok := m.modifier(); ok {
		return text
	}
	text, _ := StyleDefault.modifier()
	return text
}

// modifier is the exhaustive mode lookup. Adding a StyleMode constant without a
// case here makes Valid report false for it, which the style tests catch.
func (m StyleMode) modifier() (string, bool) {
	switch m {
	case StyleDefault:
		return `Apply blockbuster–style cinematography:
– grounded realism
– soft, motivated lighting
– natural contrast
– restrained highlights
– deep but clean shadows
– subtle atmospheric depth
Enhance realism.
Textures should feel physically real: skin pores, fabric weave, dust, stone, metal, wood, all enhanced without plastic smoothing.`, true
	case StyleCinematic:
		return "Apply blockbuster–style cinematography: grounded realism, anamorphic lens flares, soft motivated lighting, deep shadows. Texture pass: skin pores, fabric weave, realistic imperfections.", true
	case StyleAnime:
		return "Masterpiece anime art style, Studio Ghibli and Makoto Shinkai influence. High quality cel-shading, vibrant colors, clean lines, highly detailed backgrounds, dramatic lighting effects, 4k resolution.", true
	case Style3DAnimation:
		return "High-end 3D animation style, Pixar and Disney render quality. Subsurface scattering on skin, soft global illumination, expressive character features, perfect physically based rendering (PBR) materials, cute but detailed.", true
	case StyleOilPainting:
		return "Oil painting style, thick impasto brushstrokes, visible texture, expressive color mixing, classical art aesthetic, dramatic lighting, painterly finish.", true
	case StyleWatercolor:
		return "Watercolor painting style, soft edges, bleeding colors, paper texture visibility, fluid artistic motion, dreamy atmosphere, wet-on-wet technique.", true
	case StyleInkWash:
		return "Ink wash illustration, sumi-e style, stark black and white contrast, expressive brush lines, graphic novel aesthetic, negative space usage.", true
	case StyleCyberpunk:
		return "Cyberpunk aesthetic, neon lighting (pink and blue), rain-slicked streets, high-tech low-life, futuristic cityscapes, chromatic aberration, holographic overlays, gritty realism.", true
	case StyleSteampunk:
		return "Steampunk aesthetic, victorian era technology, brass and copper textures, steam and fog, gears and clockwork mechanisms, warm sepia tones, retro-futurism.", true
	case StyleNoir:
		return "Film Noir aesthetic, high contrast black and white, chiaroscuro lighting, dramatic shadows, silhouetted figures, moody atmosphere, detective film grain.", true
	case StyleVintageFilm:
		return "Vintage 1970s film stock, heavy film grain, warm color cast, light leaks, soft focus, nostalgic aesthetic, kodachrome simulation.", true
	case StyleClaymation:
		return "Stop-motion claymation style, Aardman and Laika aesthetic, tactile plasticine textures, fingerprints visible on clay, miniature scale depth of field, handcrafted look.", true
	case StyleComicBook:
		return "Modern comic book style, bold black outlines, halftone patterns, vibrant superhero colors, dynamic shading, graphic novel composition.", true
	case StyleFantasyArt:
		return "High fantasy digital painting, Dungeons & Dragons rulebook art style, epic scale, magical lighting, detailed armor and cloth, painterly realism.", true
	case StyleCustom:
		return "", true
	default:
		return "", false
	}
}

// ResolveStyle builds the positive style clause sent with image requests.
func ResolveStyle(prefs StylePreferences) string {
	if override := strings.TrimSpace(prefs.CustomOverride); override != "" {
		return "VISUAL STYLE OVERRIDE: " + prefs.CustomOverride
	}
	base := prefs.Mode.Modifier()
	if prefs.Mode == StyleCustom {
		base = prefs.CustomPositive
	}
	if strings.TrimSpace(prefs.CustomAppend) != "" {
		base = base + "\n\nADDITIONAL STYLE DETAILS: " + prefs.CustomAppend
	}
	return base
}

// ResolveNegative returns the custom negative text, or the default when blank.
func ResolveNegative(prefs StylePreferences) string {
	if strings.TrimSpace(prefs.CustomNegative) != "" {
		return prefs.CustomNegative
	}
	return DefaultNegativePrompt
}

// ValidateStyle rejects preferences where both append and override text are set.
func ValidateStyle(prefs StylePreferences) error {
	if !prefs.Mode.Valid() {
		return services.Wrap(services.ErrOutOfRange, "style", "validate", fmt.Sprintf("unknown style mode %q", prefs.Mode), nil)
	}
	if strings.TrimSpace(prefs.CustomAppend) != "" && strings.TrimSpace(prefs.CustomOverride) != "" {
		return services.Wrap(services.ErrStyleConflict, "style", "validate", "append and override text cannot both be set", nil)
	}
	return nil
}
