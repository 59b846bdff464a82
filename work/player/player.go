package player

import (
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"syscall"

	"aircast/work/config"
	"aircast/work/logger"
	"aircast/work/utils"
)

// CommandPlayer hands resolved playback locations to an external player
// process (ffplay, mpv, vlc or whatever the config names). The playback URL
// is appended to the configured command; a start position, when non-zero,
// is passed through the AIRCAST_START_POS_MS environment variable so
// wrapper scripts can translate it into their player's seek flag.
type CommandPlayer struct {
	cfg *config.Config
	lg  *logger.Logger

	mu  sync.Mutex
	cmd *exec.Cmd // currently running player process, nil when idle
}

// NewCommandPlayer returns a player that launches cfg.PlayerCommand.
func NewCommandPlayer(cfg *config.Config, lg *logger.Logger) *CommandPlayer {
	return &CommandPlayer{cfg: cfg, lg: lg}
}

// Play stops any running player process and launches a new one for
// location.
func (p *CommandPlayer) Play(location string, startPosMs float64) error {
	if len(p.cfg.PlayerCommand) == 0 {
		return fmt.Errorf("no player command configured")
	}

	p.Stop()

	args := append([]string{}, p.cfg.PlayerCommand[1:]...)
	args = append(args, location)

	cmd := exec.Command(p.cfg.PlayerCommand[0], args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
	cmd.Env = append(cmd.Environ(), fmt.Sprintf("AIRCAST_START_POS_MS=%.0f", startPosMs))

	if p.cfg.Debug {
		p.lg.Debug("[PLAYER] Command: %s %s", p.cfg.PlayerCommand[0], strings.Join(args, " "))
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start player: %w", err)
	}
	p.lg.Info("[PLAYER] Playing %s (start %.0fms)", utils.LogURL(p.cfg, location), startPosMs)

	p.mu.Lock()
	p.cmd = cmd
	p.mu.Unlock()

	// Reap the process so it doesn't linger as a zombie.
	go func() {
		_ = cmd.Wait()
	}()
	return nil
}

// Stop kills the running player process group, if any.
func (p *CommandPlayer) Stop() {
	p.mu.Lock()
	cmd := p.cmd
	p.cmd = nil
	p.mu.Unlock()

	if cmd != nil && cmd.Process != nil {
		_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}

// SetRate is a no-op for process players: external players control their
// own transport. Logged so rate requests remain visible.
func (p *CommandPlayer) SetRate(rate float64) {
	p.lg.Debug("[PLAYER] rate %.2f ignored by command player", rate)
}

// Seek is a no-op for process players, logged like SetRate.
func (p *CommandPlayer) Seek(positionSecs float64) {
	p.lg.Debug("[PLAYER] scrub to %.2fs ignored by command player", positionSecs)
}

// NullPlayer discards all playback commands. Used when no player command is
// configured and in tests.
type NullPlayer struct {
	cfg *config.Config
	lg  *logger.Logger
}

// NewNullPlayer returns a player that only logs.
func NewNullPlayer(cfg *config.Config, lg *logger.Logger) *NullPlayer {
	return &NullPlayer{cfg: cfg, lg: lg}
}

func (p *NullPlayer) Play(location string, startPosMs float64) error {
	p.lg.Info("[PLAYER] resolved location %s (start %.0fms), no player configured", utils.LogURL(p.cfg, location), startPosMs)
	return nil
}

func (p *NullPlayer) Stop() {}

func (p *NullPlayer) SetRate(rate float64) {}

func (p *NullPlayer) Seek(positionSecs float64) {}
