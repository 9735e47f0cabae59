// Package pose provides pose estimation interfaces and keypoint types for the overlay.
package pose

// Keypoint indices following the MoveNet single-pose convention.
// See: https://www.tensorflow.org/hub/tutorials/movenet
const (
	Nose          = 0
	LeftEye       = 1
	RightEye      = 2
	LeftEar       = 3
	RightEar      = 4
	LeftShoulder  = 5
	RightShoulder = 6
	LeftElbow     = 7
	RightElbow    = 8
	LeftWrist     = 9
	RightWrist    = 10
	LeftHip       = 11
	RightHip      = 12
	LeftKnee      = 13
	RightKnee     = 14
	LeftAnkle     = 15
	RightAnkle    = 16
	NumKeypoints  = 17
)

// KeypointNames holds the model's joint names indexed by keypoint index.
var KeypointNames = [NumKeypoints]string{
	"nose",
	"left_eye",
	"right_eye",
	"left_ear",
	"right_ear",
	"left_shoulder",
	"right_shoulder",
	"left_elbow",
	"right_elbow",
	"left_wrist",
	"right_wrist",
	"left_hip",
	"right_hip",
	"left_knee",
	"right_knee",
	"left_ankle",
	"right_ankle",
}

// Skeleton lists the pairs of keypoint indices joined by a bone.
var Skeleton = [][2]int{
	{Nose, LeftEye},
	{Nose, RightEye},
	{LeftEye, LeftEar},
	{RightEye, RightEar},
	{LeftShoulder, RightShoulder},
	{LeftShoulder, LeftElbow},
	{LeftShoulder, LeftHip},
	{RightShoulder, RightElbow},
	{RightShoulder, RightHip},
	{LeftElbow, LeftWrist},
	{RightElbow, RightWrist},
	{LeftHip, RightHip},
	{LeftHip, LeftKnee},
	{RightHip, RightKnee},
	{LeftKnee, LeftAnkle},
	{RightKnee, RightAnkle},
}

// Keypoint is a single joint estimate in model-output coordinates.
// A nil Score means the model did not report a confidence.
type Keypoint struct {
	Name  string   `json:"name"`
	X     float64  `json:"x"`
	Y     float64  `json:"y"`
	Score *float64 `json:"score,omitempty"`
}

// Confidence returns the keypoint score, treating a missing score as 1.0.
func (k Keypoint) Confidence() float64 {
	if k.Score == nil {
		return 1.0
	}
	return *k.Score
}

// Result is the ordered set of keypoints for a single subject.
type Result struct {
	Keypoints []Keypoint `json:"keypoints"`
}

// Empty reports whether the result carries no keypoints.
func (r Result) Empty() bool {
	return len(r.Keypoints) == 0
}

// Score returns a pointer to s, for building keypoints with a confidence.
func Score(s float64) *float64 {
	return &s
}
