package inference

import (
	"github.com/pkg/errors"

	"github.com/ivlev/tryon/internal/pose"
)

// Config is the detector configuration surface.
type Config struct {
	SmoothingWindowSize int     `yaml:"smoothing_window_size"`
	MinPoseScore        float32 `yaml:"min_pose_score"`
	MinKeypointScore    float32 `yaml:"min_keypoint_score"`
	MultiPerson         bool    `yaml:"multi_person"`
	MaxPoses            int     `yaml:"max_poses"`
}

func DefaultConfig() Config {
	return Config{
		SmoothingWindowSize: pose.DefaultStreamWindow,
		MinPoseScore:        pose.DefaultMinPoseScore,
		MinKeypointScore:    pose.DefaultMinKeypointScore,
		MultiPerson:         false,
		MaxPoses:            1,
	}
}

func (c Config) Validate() error {
	if c.SmoothingWindowSize < 1 {
		return errors.Errorf("smoothing_window_size must be >= 1, got %d", c.SmoothingWindowSize)
	}
	if c.MinPoseScore < 0 || c.MinPoseScore > 1 {
		return errors.Errorf("min_pose_score must be in [0,1], got %.2f", c.MinPoseScore)
	}
	if c.MinKeypointScore < 0 || c.MinKeypointScore > 1 {
		return errors.Errorf("min_keypoint_score must be in [0,1], got %.2f", c.MinKeypointScore)
	}
	if c.MaxPoses < 1 {
		return errors.Errorf("max_poses must be >= 1, got %d", c.MaxPoses)
	}
	return nil
}

// Limit returns how many subjects a detector should report.
func (c Config) Limit() int {
	if !c.MultiPerson {
		return 1
	}
	return c.MaxPoses
}

// Smoother derives the smoothing configuration.
func (c Config) Smoother() pose.SmootherConfig {
	return pose.SmootherConfig{
		WindowSize:       c.SmoothingWindowSize,
		MinKeypointScore: c.MinKeypointScore,
		MinPoseScore:     c.MinPoseScore,
	}
}
