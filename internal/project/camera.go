package project

import (
	"fmt"
	"strings"

	"github.com/bozzyboy/nano-director-5/internal/services"
)

// CameraShot identifies a camera technique that can be forced onto a composite.
type CameraShot string

// ShotCategory groups camera shots for presentation.
type ShotCategory string

const (
	CategoryDistance   ShotCategory = "DISTANCE"
	CategoryVertical   ShotCategory = "VERTICAL"
	CategoryHorizontal ShotCategory = "HORIZONTAL"
	CategoryOptics     ShotCategory = "OPTICS"
)

type cameraShotInfo struct {
	shot        CameraShot
	category    ShotCategory
	description string
}

var cameraShotLibrary = []cameraShotInfo{
	{"EXTREME_CLOSE_UP", CategoryDistance, "Extreme close-up (ECU), macro focus on specific details (eyes, fingers, texture), filling the frame."},
	{"CLOSE_UP", CategoryDistance, "Close-up (CU), intimate framing on the face, capturing emotional nuance and reaction."},
	{"MEDIUM_CLOSE_UP", CategoryDistance, "Medium close-up (MCU), chest-up framing, standard dialogue intensity."},
	{"MEDIUM_SHOT", CategoryDistance, "Medium shot (MS), waist-up framing, neutral distance."},
	{"COWBOY_SHOT", CategoryDistance, "Cowboy shot (American shot), mid-thigh up, highlighting tools/weapons at hip height."},
	{"FULL_SHOT", CategoryDistance, "Full shot (FS), subject visible head-to-toe, emphasizing body language and costume."},
	{"WIDE_SHOT", CategoryDistance, "Wide shot (WS), subject fully placed within their immediate environment."},
	{"EXTREME_WIDE_SHOT", CategoryDistance, "Extreme wide shot (EWS), massive scale, subject appears small against the landscape."},
	{"SATELLITE_VIEW", CategoryDistance, "Satellite view, stratospheric altitude, map-like layout of the terrain, Google Earth aesthetic."},
	{"MACRO_TEXTURE", CategoryDistance, "Macro photography, microscopic detail of surfaces/materials, abstract texture focus."},
	{"DRONE_ESTABLISHING", CategoryDistance, "Cinematic drone shot, slow, wide, and stable, revealing the location."},
	{"DRONE_FPV", CategoryDistance, "FPV Drone shot, aggressive banking, high speed, diving, racing drone perspective."},
	{"DRONE_TOP_DOWN", CategoryDistance, "Drone top-down, vertical descent or ascent directly above the target."},
	{"HELICOPTER_SHOT", CategoryDistance, "Helicopter shot, high-altitude stabilization, blockbuster scale."},

	{"EYE_LEVEL", CategoryVertical, "Eye-level angle, neutral perspective, connecting directly with the subject."},
	{"SHOULDER_LEVEL", CategoryVertical, "Shoulder-level height, grounding the viewer in the scene."},
	{"HIP_LEVEL", CategoryVertical, "Hip-level angle, heroic or threatening stance, emphasizing movement."},
	{"KNEE_LEVEL", CategoryVertical, "Knee-level angle, looking slightly up, dynamic grounded movement."},
	{"GROUND_LEVEL", CategoryVertical, "Ground-level (Low hat), camera placed directly on the floor/surface."},
	{"LOW_ANGLE", CategoryVertical, "Low angle, looking up at subject, conveying power, dominance, or heroism."},
	{"HIGH_ANGLE", CategoryVertical, "High angle, looking down at subject, conveying vulnerability or weakness."},
	{"OVERHEAD_90", CategoryVertical, "Top-down 90-degree angle (God's Eye), strictly perpendicular to the ground, graphic composition."},
	{"BIRDS_EYE_VIEW", CategoryVertical, "Bird's eye view, high aerial angle (45-60 degrees), revealing scene geography."},
	{"WORMS_EYE_VIEW", CategoryVertical, "Worm's eye view, extreme upward angle from the dirt/floor."},
	{"BOTTOM_UP_90", CategoryVertical, "Direct bottom-up angle, facing straight up at the sky/ceiling/subject's chin."},

	{"FRONTAL_ANGLE", CategoryHorizontal, "Frontal angle, subject facing camera directly, symmetrical composition."},
	{"THREE_QUARTER_ANGLE", CategoryHorizontal, "3/4 angle, standard cinematic depth perspective."},
	{"PROFILE_SHOT", CategoryHorizontal, "Profile shot, exact side view, emphasizing silhouette or direction."},
	{"REAR_ANGLE", CategoryHorizontal, "Rear angle, viewing the scene from behind the subject."},
	{"OVER_THE_SHOULDER", CategoryHorizontal, "Over-the-shoulder (OTS), looking past a foreground subject to the focus."},
	{"POINT_OF_VIEW", CategoryHorizontal, "Point-of-View (POV), handheld aesthetic, seeing exactly what the character sees."},
	{"DUTCH_ANGLE", CategoryHorizontal, "Dutch angle, tilted horizon line, creating tension, disorientation, or chaos."},
	{"TWO_SHOT", CategoryHorizontal, "Two-shot, framing two characters to show their dynamic."},
	{"GROUP_SHOT", CategoryHorizontal, "Group shot, ensemble framing."},
	{"ISOMETRIC_VIEW", CategoryHorizontal, "Isometric view, orthographic projection, simulated 3D video game perspective."},

	{"FISHEYE_LENS", CategoryOptics, "Fisheye lens, extreme barrel distortion, ultra-wide field of view."},
	{"ANAMORPHIC_WIDESCREEN", CategoryOptics, "Anamorphic lens, cinematic 2.39:1 aspect ratio, oval bokeh, horizontal lens flares."},
	{"TELEPHOTO_COMPRESSED", CategoryOptics, "Telephoto compression, long lens, background appears massive and close to subject."},
	{"TILT_SHIFT", CategoryOptics, "Tilt-shift effect, selective focus plane, making the scene look like a miniature toy set."},
	{"SPLIT_DIOPTER", CategoryOptics, "Split diopter, sharp focus on both extreme foreground and extreme background simultaneously."},
	{"NIGHT_VISION", CategoryOptics, "Night vision, grainy green phosphor or white-hot thermal aesthetic."},
	{"THERMAL_IMAGING", CategoryOptics, "Thermal imaging, predator-vision heat map colors."},
	{"VHS_GLITCH", CategoryOptics, "VHS aesthetic, tracking lines, chromatic aberration, magnetic tape noise."},
}

var cameraShotIndex = func() map[CameraShot]int {
	index := make(map[CameraShot]int, len(cameraShotLibrary))
	for i, info := range cameraShotLibrary {
		index[info.shot] = i
	}
	return index
}()

// CameraShots returns the shot identifiers in a category, in library order.
// An empty category returns every shot.
func CameraShots(category ShotCategory) []CameraShot {
	var out []CameraShot
	for _, info := range cameraShotLibrary {
		if category == "" || info.category == category {
			out = append(out, info.shot)
		}
	}
	return out
}

// Description returns the prompt text for the shot, or "" when unknown.
func (c CameraShot) Description() string {
	if idx, ok := cameraShotIndex[c]; ok {
		return cameraShotLibrary[idx].description
	}
	return ""
}

// Category returns the category of the shot, or "" when unknown.
func (c CameraShot) Category() ShotCategory {
	if idx, ok := cameraShotIndex[c]; ok {
		return cameraShotLibrary[idx].category
	}
	return ""
}

// ParseCameraShot accepts identifiers case-insensitively.
func ParseCameraShot(value string) (CameraShot, error) {
	shot := CameraShot(strings.NewReplacer("-", "_", " ", "_").Replace(strings.ToUpper(strings.TrimSpace(value))))
	if _, ok := cameraShotIndex[shot]; !ok {
		return "", services.Wrap(services.ErrOutOfRange, "camera", "parse shot", fmt.Sprintf("unknown camera shot %q", value), nil)
	}
	return shot, nil
}

// JoinCameraShots renders a selection as "A + B"; unknown shots are skipped.
func JoinCameraShots(shots []CameraShot) string {
	parts := make([]string, 0, len(shots))
	for _, shot := range shots {
		if desc := shot.Description(); desc != "" {
			parts = append(parts, desc)
		}
	}
	return strings.Join(parts, " + ")
}
