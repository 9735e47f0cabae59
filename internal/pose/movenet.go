package pose

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

const serviceScript = "movenet_service.py"

// ErrScriptNotFound is returned when the model service script cannot be located.
var ErrScriptNotFound = errors.New(serviceScript + " not found")

// MoveNetEstimator implements Estimator using a Python MoveNet subprocess.
// Frames are sent as length-prefixed JPEG; the service answers one JSON line per frame.
type MoveNetEstimator struct {
	config     Config
	scriptPath string
	cmd        *exec.Cmd
	stdin      io.WriteCloser
	stdout     *bufio.Reader
	mu         sync.Mutex
	started    bool
	lastUsed   time.Time
	idleTimer  *time.Timer
}

// NewMoveNetEstimator creates a new MoveNet estimator.
// The Python process is started lazily on first estimate.
func NewMoveNetEstimator(config Config) (*MoveNetEstimator, error) {
	scriptPath := config.ScriptPath
	if scriptPath == "" {
		scriptPath = findServiceScript()
	}
	if scriptPath == "" {
		return nil, ErrScriptNotFound
	}
	if _, err := os.Stat(scriptPath); err != nil {
		return nil, fmt.Errorf("stat %s: %w", scriptPath, err)
	}

	if config.IdleTimeoutSec <= 0 {
		config.IdleTimeoutSec = DefaultConfig().IdleTimeoutSec
	}
	if config.JPEGQuality <= 0 || config.JPEGQuality > 100 {
		config.JPEGQuality = DefaultConfig().JPEGQuality
	}

	return &MoveNetEstimator{
		config:     config,
		scriptPath: scriptPath,
	}, nil
}

// Estimate sends a frame to the service and returns the decoded keypoints.
// No deadline is applied to the service reply; a hung service blocks the caller.
func (e *MoveNetEstimator) Estimate(ctx context.Context, frame *gocv.Mat) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if frame == nil || frame.Empty() {
		return Result{}, errors.New("empty frame")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.ensureStarted(); err != nil {
		return Result{}, err
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, *frame, []int{gocv.IMWriteJpegQuality, e.config.JPEGQuality})
	if err != nil {
		return Result{}, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	data := buf.GetBytes()

	// Write length (4 bytes big-endian) + data
	length := make([]byte, 4)
	binary.BigEndian.PutUint32(length, uint32(len(data)))

	if _, err := e.stdin.Write(length); err != nil {
		e.abort()
		return Result{}, fmt.Errorf("write length: %w", err)
	}
	if _, err := e.stdin.Write(data); err != nil {
		e.abort()
		return Result{}, fmt.Errorf("write data: %w", err)
	}

	line, err := e.stdout.ReadString('\n')
	if err != nil {
		e.abort()
		return Result{}, fmt.Errorf("read response: %w", err)
	}

	result, err := decodeResponse([]byte(line))
	if err != nil {
		return Result{}, err
	}

	e.lastUsed = time.Now()
	e.resetIdleTimer()

	return result, nil
}

// Close shuts down the Python process.
func (e *MoveNetEstimator) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.shutdown()
}

func (e *MoveNetEstimator) ensureStarted() error {
	if e.started {
		return nil
	}

	pythonPath := e.config.PythonPath
	if pythonPath == "" {
		pythonPath = findVenvPython()
	}
	if pythonPath == "" {
		pythonPath = "python3"
	}

	e.cmd = exec.Command(pythonPath, e.scriptPath)

	stdin, err := e.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}

	stdout, err := e.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}

	e.cmd.Stderr = os.Stderr

	if err := e.cmd.Start(); err != nil {
		return fmt.Errorf("start movenet service: %w", err)
	}

	e.stdin = stdin
	e.stdout = bufio.NewReader(stdout)
	e.started = true
	e.lastUsed = time.Now()

	return nil
}

// abort tears the service down after a broken pipe so the next estimate restarts it.
func (e *MoveNetEstimator) abort() {
	if e.cmd != nil && e.cmd.Process != nil {
		e.cmd.Process.Kill()
	}
	e.shutdown()
}

func (e *MoveNetEstimator) shutdown() error {
	if !e.started {
		return nil
	}

	if e.idleTimer != nil {
		e.idleTimer.Stop()
		e.idleTimer = nil
	}

	if e.stdin != nil {
		e.stdin.Close()
	}

	err := e.cmd.Wait()
	e.started = false
	e.cmd = nil
	e.stdin = nil
	e.stdout = nil

	return err
}

func (e *MoveNetEstimator) resetIdleTimer() {
	if e.idleTimer != nil {
		e.idleTimer.Stop()
	}
	e.idleTimer = time.AfterFunc(time.Duration(e.config.IdleTimeoutSec)*time.Second, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		e.shutdown()
	})
}

func findServiceScript() string {
	execPath, err := os.Executable()
	var execDir string
	if err == nil {
		execDir = filepath.Dir(execPath)
	}

	candidates := []string{
		filepath.Join("scripts", serviceScript),
		filepath.Join("..", "scripts", serviceScript),
		filepath.Join(execDir, "scripts", serviceScript),
		filepath.Join(os.Getenv("HOME"), ".posecam", "scripts", serviceScript),
	}

	return firstExisting(candidates)
}

// findVenvPython looks for a Python interpreter in a virtual environment.
func findVenvPython() string {
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}
	execDir := filepath.Dir(execPath)

	candidates := []string{
		"venv/bin/python",
		"../venv/bin/python",
		filepath.Join(execDir, "venv/bin/python"),
		filepath.Join(os.Getenv("HOME"), ".posecam/venv/bin/python"),
	}

	return firstExisting(candidates)
}

func firstExisting(paths []string) string {
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			absPath, err := filepath.Abs(path)
			if err == nil {
				return absPath
			}
			return path
		}
	}
	return ""
}

// jsonResponse is the line-delimited reply from the Python service.
type jsonResponse struct {
	Keypoints []jsonKeypoint `json:"keypoints"`
	Error     string         `json:"error,omitempty"`
}

type jsonKeypoint struct {
	Name  string   `json:"name"`
	X     float64  `json:"x"`
	Y     float64  `json:"y"`
	Score *float64 `json:"score"`
}

func decodeResponse(line []byte) (Result, error) {
	var response jsonResponse
	if err := json.Unmarshal(line, &response); err != nil {
		return Result{}, fmt.Errorf("parse response: %w", err)
	}
	if response.Error != "" {
		return Result{}, fmt.Errorf("movenet service: %s", response.Error)
	}

	result := Result{Keypoints: make([]Keypoint, len(response.Keypoints))}
	for i, k := range response.Keypoints {
		name := k.Name
		if name == "" && i < NumKeypoints {
			name = KeypointNames[i]
		}
		result.Keypoints[i] = Keypoint{
			Name:  name,
			X:     k.X,
			Y:     k.Y,
			Score: k.Score,
		}
	}

	return result, nil
}
