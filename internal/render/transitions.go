package render

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"
)

// Transition names accepted in settings and on the command line.
const (
	TransitionNone             = "none"
	TransitionRandom           = "random"
	TransitionFade             = "fade"
	TransitionMirrorFlip       = "mirror_flip"
	TransitionHueShift         = "hue_shift"
	TransitionPixelate         = "pixelate"
	TransitionSpinZoom         = "spin_zoom"
	TransitionReverseFlashback = "reverse_flashback"
	TransitionSpeedRamp        = "speed_ramp"
	TransitionSplitScreen      = "split_screen"
)

// namedTransitions is the pool "random" draws from per boundary.
var namedTransitions = []string{
	TransitionFade,
	TransitionMirrorFlip,
	TransitionHueShift,
	TransitionPixelate,
	TransitionSpinZoom,
	TransitionReverseFlashback,
	TransitionSpeedRamp,
	TransitionSplitScreen,
}

// minTransitionWindow is the smallest usable overlap; boundaries whose
// clamped window falls below it become plain cuts.
const minTransitionWindow = 0.1

// SceneClip is one normalized scene file entering the composite.
type SceneClip struct {
	Path     string
	Duration float64
}

// BoundaryPlan describes what happens between two adjacent scenes.
// Overlap 0 means a plain cut.
type BoundaryPlan struct {
	Effect       string
	Overlap      float64
	JoinDuration float64
}

// CompositeSpec is a ready-to-run filter_complex for the whole
// timeline, with the labels to map and the resulting duration.
type CompositeSpec struct {
	FilterComplex string
	VideoLabel    string
	AudioLabel    string
	Duration      float64
	Boundaries    []BoundaryPlan
}

// PlanBoundaries resolves the per-boundary effect and overlap window.
// The window is clamped so twice the overlap never exceeds either
// adjacent scene; windows flooring below the minimum become cuts.
func PlanBoundaries(scenes []SceneClip, transition string, duration float64, rng *rand.Rand) []BoundaryPlan {
	if len(scenes) < 2 {
		return nil
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	plans := make([]BoundaryPlan, len(scenes)-1)
	for k := range plans {
		if transition == TransitionNone {
			plans[k] = BoundaryPlan{Effect: TransitionNone}
			continue
		}

		effect := transition
		if transition == TransitionRandom {
			effect = namedTransitions[rng.Intn(len(namedTransitions))]
		}

		d := duration
		d = math.Min(d, scenes[k].Duration/2)
		d = math.Min(d, scenes[k+1].Duration/2)
		if math.IsNaN(d) || d < minTransitionWindow {
			plans[k] = BoundaryPlan{Effect: effect}
			continue
		}

		join := d
		if effect == TransitionSpeedRamp {
			join = d / 2
		}
		plans[k] = BoundaryPlan{Effect: effect, Overlap: d, JoinDuration: join}
	}
	return plans
}

// BuildComposite assembles one filter_complex joining every scene with
// its boundary effect. Scene files must already be normalized to the
// same resolution, frame rate and audio layout; width/height feed the
// effects that rescale mid-chain.
func BuildComposite(scenes []SceneClip, transition string, duration float64, rng *rand.Rand, width, height int) (CompositeSpec, error) {
	if len(scenes) == 0 {
		return CompositeSpec{}, errors.New("no scenes to composite")
	}
	for _, sc := range scenes {
		if sc.Duration <= 0 || math.IsNaN(sc.Duration) {
			return CompositeSpec{}, fmt.Errorf("scene %s has no usable duration", sc.Path)
		}
	}

	g := &graphBuilder{}

	if len(scenes) == 1 {
		g.add("[0:v]null[vout]")
		g.add("[0:a]anull[aout]")
		return CompositeSpec{
			FilterComplex: g.graph(),
			VideoLabel:    "vout",
			AudioLabel:    "aout",
			Duration:      scenes[0].Duration,
		}, nil
	}

	bounds := PlanBoundaries(scenes, transition, duration, rng)

	videoLabels := make([]string, len(scenes))
	audioLabels := make([]string, len(scenes))
	videoDurs := make([]float64, len(scenes))

	for i, sc := range scenes {
		var head, tail *BoundaryPlan
		if i > 0 {
			head = &bounds[i-1]
		}
		if i < len(bounds) {
			tail = &bounds[i]
		}
		videoLabels[i], videoDurs[i] = g.buildStreamVideo(i, sc, head, tail, width, height)
		audioLabels[i] = g.buildStreamAudio(i, sc, tail)
	}

	acc := videoLabels[0]
	accAudio := audioLabels[0]
	accDur := videoDurs[0]
	for k, b := range bounds {
		next := videoLabels[k+1]
		nextAudio := audioLabels[k+1]
		joinedV := g.label("vx")
		joinedA := g.label("ax")

		if b.JoinDuration <= 0 {
			g.add(fmt.Sprintf("[%s][%s]concat=n=2:v=1:a=0[%s]", acc, next, joinedV))
			g.add(fmt.Sprintf("[%s][%s]concat=n=2:v=0:a=1[%s]", accAudio, nextAudio, joinedA))
			accDur += videoDurs[k+1]
		} else {
			offset := accDur - b.JoinDuration
			g.add(fmt.Sprintf("[%s][%s]xfade=transition=%s:duration=%s:offset=%s[%s]",
				acc, next, xfadeName(b.Effect), formatFloat(b.JoinDuration), formatFloat(offset), joinedV))
			g.add(fmt.Sprintf("[%s][%s]acrossfade=d=%s[%s]",
				accAudio, nextAudio, formatFloat(b.JoinDuration), joinedA))
			accDur += videoDurs[k+1] - b.JoinDuration
		}
		acc, accAudio = joinedV, joinedA
	}

	return CompositeSpec{
		FilterComplex: g.graph(),
		VideoLabel:    acc,
		AudioLabel:    accAudio,
		Duration:      accDur,
		Boundaries:    bounds,
	}, nil
}

// xfadeName maps an effect to the xfade transition that joins its
// overlap windows. Most effects do their work in the pre-chains and
// join with a plain crossfade.
func xfadeName(effect string) string {
	switch effect {
	case TransitionPixelate:
		return "pixelize"
	case TransitionSplitScreen:
		return "wipeleft"
	default:
		return "fade"
	}
}

type graphBuilder struct {
	stmts []string
	seq   int
}

func (g *graphBuilder) label(prefix string) string {
	g.seq++
	return fmt.Sprintf("%s%d", prefix, g.seq)
}

func (g *graphBuilder) add(stmt string) {
	g.stmts = append(g.stmts, stmt)
}

func (g *graphBuilder) graph() string {
	return strings.Join(g.stmts, ";")
}

// emit chains filters onto the current stream and returns the new
// label.
func (g *graphBuilder) emit(cur, filters string) string {
	out := g.label("v")
	g.add(fmt.Sprintf("[%s]%s[%s]", cur, filters, out))
	return out
}

// buildStreamVideo applies the head-side effect of the previous
// boundary and the tail-side effect of the next one to input i,
// returning the processed label and the stream's effective duration.
func (g *graphBuilder) buildStreamVideo(i int, clip SceneClip, head, tail *BoundaryPlan, width, height int) (string, float64) {
	cur := fmt.Sprintf("%d:v", i)
	eff := clip.Duration

	if head != nil && head.Overlap > 0 {
		d := head.Overlap
		switch head.Effect {
		case TransitionMirrorFlip:
			cur = g.emit(cur, mirrorRamp(rampDown("T", d)))
		case TransitionHueShift:
			cur = g.emit(cur, fmt.Sprintf("hue=h=%s", quoteExpr("360*"+rampDown("t", d))))
		case TransitionSpinZoom:
			cur = g.emit(cur, spinChain(rampDown("t", d), true, width, height))
		case TransitionReverseFlashback:
			cur = g.reverseFlashbackHead(cur, d)
		}
	}

	if tail != nil && tail.Overlap > 0 {
		d := tail.Overlap
		t0 := eff - d
		switch tail.Effect {
		case TransitionMirrorFlip:
			cur = g.emit(cur, mirrorRamp(rampUp("T", t0, d)))
		case TransitionHueShift:
			cur = g.emit(cur, fmt.Sprintf("hue=h=%s", quoteExpr("360*"+rampUp("t", t0, d))))
		case TransitionSpinZoom:
			cur = g.emit(cur, spinChain(rampUp("t", t0, d), false, width, height))
		case TransitionSpeedRamp:
			cur = g.speedRampTail(cur, t0, d)
			eff = t0 + d/2
		}
	}

	if strings.Contains(cur, ":") {
		return g.emit(cur, "null"), eff
	}
	return cur, eff
}

// buildStreamAudio mirrors the duration-changing tail mods on the
// audio side so streams stay in sync; everything else joins untouched.
func (g *graphBuilder) buildStreamAudio(i int, clip SceneClip, tail *BoundaryPlan) string {
	cur := fmt.Sprintf("%d:a", i)

	if tail != nil && tail.Overlap > 0 && tail.Effect == TransitionSpeedRamp {
		d := tail.Overlap
		t0 := clip.Duration - d
		a, b := g.label("as"), g.label("as")
		body, fast := g.label("ab"), g.label("af")
		out := g.label("a")

		g.add(fmt.Sprintf("[%s]asplit=2[%s][%s]", cur, a, b))
		g.add(fmt.Sprintf("[%s]atrim=duration=%s,asetpts=PTS-STARTPTS[%s]", a, formatFloat(t0), body))
		g.add(fmt.Sprintf("[%s]atrim=start=%s,asetpts=PTS-STARTPTS,atempo=2[%s]", b, formatFloat(t0), fast))
		g.add(fmt.Sprintf("[%s][%s]concat=n=2:v=0:a=1[%s]", body, fast, out))
		return out
	}

	out := g.label("a")
	g.add(fmt.Sprintf("[%s]anull[%s]", cur, out))
	return out
}

// reverseFlashbackHead replays the head window reversed with decaying
// brightness pulses, then splices the remainder back on.
func (g *graphBuilder) reverseFlashbackHead(cur string, d float64) string {
	a, b := g.label("fb"), g.label("fb")
	hd, tl := g.label("fh"), g.label("ft")
	out := g.label("v")

	ds := formatFloat(d)
	pulse := fmt.Sprintf("0.5*(1-t/%s)*abs(sin(3*PI*t/%s))", ds, ds)

	g.add(fmt.Sprintf("[%s]split=2[%s][%s]", cur, a, b))
	g.add(fmt.Sprintf("[%s]trim=duration=%s,setpts=PTS-STARTPTS,reverse,eq=brightness=%s[%s]", a, ds, quoteExpr(pulse), hd))
	g.add(fmt.Sprintf("[%s]trim=start=%s,setpts=PTS-STARTPTS[%s]", b, ds, tl))
	g.add(fmt.Sprintf("[%s][%s]concat=n=2:v=1:a=0[%s]", hd, tl, out))
	return out
}

// speedRampTail time-compresses the tail window to double speed, so
// the scene rushes into the join.
func (g *graphBuilder) speedRampTail(cur string, t0, d float64) string {
	a, b := g.label("sr"), g.label("sr")
	body, fast := g.label("sb"), g.label("sf")
	out := g.label("v")

	g.add(fmt.Sprintf("[%s]split=2[%s][%s]", cur, a, b))
	g.add(fmt.Sprintf("[%s]trim=duration=%s,setpts=PTS-STARTPTS[%s]", a, formatFloat(t0), body))
	g.add(fmt.Sprintf("[%s]trim=start=%s,setpts=(PTS-STARTPTS)*0.5[%s]", b, formatFloat(t0), fast))
	g.add(fmt.Sprintf("[%s][%s]concat=n=2:v=1:a=0[%s]", body, fast, out))
	return out
}

// rampUp is a 0→1 progress expression over the window starting at t0.
func rampUp(timeVar string, t0, d float64) string {
	if t0 <= 0 {
		return fmt.Sprintf("clip(%s/%s,0,1)", timeVar, formatFloat(d))
	}
	return fmt.Sprintf("clip((%s-%s)/%s,0,1)", timeVar, formatFloat(t0), formatFloat(d))
}

// rampDown is the inverse ramp used on head sides: fully applied at the
// cut, relaxing to identity by the end of the window.
func rampDown(timeVar string, d float64) string {
	return fmt.Sprintf("(1-clip(%s/%s,0,1))", timeVar, formatFloat(d))
}

// mirrorRamp remaps each plane's sample position progressively toward
// its horizontal mirror as the progress expression rises.
func mirrorRamp(progress string) string {
	sample := func(plane string) string {
		return quoteExpr(fmt.Sprintf("%s(X+(W-1-2*X)*%s,Y)", plane, progress))
	}
	return fmt.Sprintf("geq=lum=%s:cb=%s:cr=%s", sample("lum"), sample("cb"), sample("cr"))
}

// spinChain rotates up to 10 degrees while zooming toward 1.2x, via a
// time-ramped rotate plus a shrinking crop scaled back to full frame.
func spinChain(progress string, inverse bool, width, height int) string {
	angle := fmt.Sprintf("(PI/18)*%s", progress)
	if inverse {
		angle = "-" + angle
	}
	zoom := fmt.Sprintf("(1+0.2*%s)", progress)

	return strings.Join([]string{
		fmt.Sprintf("rotate=a=%s:c=black", quoteExpr(angle)),
		fmt.Sprintf("crop=w=%s:h=%s", quoteExpr("iw/"+zoom), quoteExpr("ih/"+zoom)),
		fmt.Sprintf("scale=w=%d:h=%d", width, height),
	}, ",")
}
