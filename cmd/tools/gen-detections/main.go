// Command gen-detections generates a synthetic detection feed (JSONL) for
// testing replay without a camera: two customers walk in, one sits at each
// table, one leaves before the clip ends.
package main

import (
	"encoding/json"
	"flag"
	"log"
	"math"
	"os"

	"github.com/cafesense/occupancy.report/internal/vision"
)

type outFrame struct {
	Index      int                `json:"frame"`
	Timestamp  float64            `json:"timestamp"`
	Detections []vision.Detection `json:"detections"`
}

func main() {
	output := flag.String("o", "sample_detections.jsonl", "output path")
	frames := flag.Int("n", 900, "number of frames")
	fps := flag.Float64("fps", 30, "frame rate")
	flag.Parse()

	f, err := os.Create(*output)
	if err != nil {
		log.Fatalf("failed to create output: %v", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for i := 0; i < *frames; i++ {
		t := float64(i) / *fps
		frame := outFrame{Index: i, Timestamp: t}

		// Customer 1 walks in from the left, sits near (400, 400) after 5s.
		x1, y1 := walkThenSit(t, 5, 100, 400, 400, 400)
		frame.Detections = append(frame.Detections, person(1, x1, y1))

		// Customer 2 enters at 3s, sits near (900, 500), leaves at 4/5 of the clip.
		clip := float64(*frames) / *fps
		if t >= 3 && t < clip*0.8 {
			x2, y2 := walkThenSit(t-3, 4, 1800, 900, 500, 500)
			frame.Detections = append(frame.Detections, person(2, x2, y2))
		}

		if err := enc.Encode(frame); err != nil {
			log.Fatalf("failed to write frame: %v", err)
		}
	}
	log.Printf("✓ Created: %s (%d frames at %.0f fps)", *output, *frames, *fps)
}

// walkThenSit interpolates from the entry x to the seat over walkSecs, then
// jitters around the seat so the tracker has believable noise.
func walkThenSit(t, walkSecs, fromX, toX, fromY, toY float64) (x, y float64) {
	frac := t / walkSecs
	if frac > 1 {
		frac = 1
	}
	x = fromX + (toX-fromX)*frac
	y = fromY + (toY-fromY)*frac
	x += 3 * math.Sin(t*7)
	y += 3 * math.Cos(t*5)
	return x, y
}

func person(trackID int64, x, y float64) vision.Detection {
	box := vision.BBox{X: x - 40, Y: y - 90, W: 80, H: 180}
	kps := make([]vision.Keypoint, vision.KeypointCount)
	kps[vision.KeypointLeftShoulder] = vision.Keypoint{X: x - 20, Y: y - 40, Confidence: 0.9}
	kps[vision.KeypointRightShoulder] = vision.Keypoint{X: x + 20, Y: y - 40, Confidence: 0.9}
	return vision.Detection{
		RawTrackID: trackID,
		Box:        box,
		Confidence: 0.85,
		Keypoints:  kps,
		MeanColor:  vision.Color{80 + 10*float64(trackID), 90, 100},
	}
}
