package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/nightlyone/lockfile"
	"github.com/pkg/errors"
	"github.com/viamrobotics/btdoctor"
	"github.com/viamrobotics/btdoctor/utils"
	"go.viam.com/rdk/logging"
)

const binaryName = "bt-doctor"

var (
	activeBackgroundWorkers sync.WaitGroup

	// only changed/set at startup, so no mutex.
	globalLogger = logging.NewLogger(binaryName)
)

//nolint:lll
type doctorOpts struct {
	Config  string `default:"/etc/bt-doctor.json"                          description:"Path to config file"                              long:"config"  short:"c"`
	User    string `description:"User to check bluetooth group membership for" long:"user"                                                    short:"u"`
	Debug   bool   `description:"Enable debug logging"                         env:"BT_DOCTOR_DEBUG"                                          long:"debug"   short:"d"`
	DryRun  bool   `description:"Print remediation commands instead of running them" long:"dry-run"                                           short:"n"`
	Device  string `description:"Bluetooth address of a device to report pairing status for" long:"device"`
	Scan    bool   `description:"Scan for the device's advertisements"        long:"scan"`
	Help    bool   `description:"Show this help message"                       long:"help"                                                    short:"h"`
	Version bool   `description:"Show version"                                 long:"version"                                                 short:"v"`
}

func main() {
	ctx, cancel := setupExitSignalHandling()

	defer func() {
		cancel()
		activeBackgroundWorkers.Wait()
	}()

	var opts doctorOpts

	parser := flags.NewParser(&opts, flags.IgnoreUnknown)
	parser.Usage = "diagnoses the bluetooth stack and repairs what it safely can."

	_, err := parser.Parse()
	exitIfError(err)

	if opts.Help {
		var b bytes.Buffer
		parser.WriteHelp(&b)
		//nolint:forbidigo
		fmt.Println(b.String())
		return
	}

	if opts.Version {
		//nolint:forbidigo
		fmt.Printf("Version: %s\nGit Revision: %s\n", utils.GetVersion(), utils.GetRevision())
		return
	}

	if opts.Debug {
		globalLogger.SetLevel(logging.DEBUG)
	}

	utils.ConfigFilePath = opts.Config
	cfg, err := utils.LoadConfig(utils.ConfigFilePath)
	if err != nil {
		globalLogger.Warn(errors.Wrap(err, "config has errors, continuing with corrected values"))
	}
	cfg, err = utils.ApplyOverrides(cfg, opts.User, opts.Device, opts.Scan)
	if err != nil {
		globalLogger.Warn(errors.Wrap(err, "invalid command line values"))
	}

	user, err := utils.TargetUser(cfg.User)
	if err != nil {
		globalLogger.Warn(err)
	}

	globalLogger.Debugf("%s version: %s git revision: %s", binaryName, utils.GetVersion(), utils.GetRevision())

	runner := btdoctor.NewRunner(globalLogger, cfg, user, btdoctor.WithDryRun(opts.DryRun))

	// remediation commands from two runs would race each other
	pidFile, err := getLock()
	if err != nil {
		globalLogger.Error(err)
		runner.Skip("another bt-doctor run holds the lock")
		return
	}
	defer func() {
		if err := pidFile.Unlock(); err != nil {
			globalLogger.Error(errors.Wrapf(err, "unlocking %s", pidFile))
		}
	}()

	report := runner.Run(ctx)
	globalLogger.Debugw("run finished", "run", report.RunID, "healthy", report.Healthy())
}

func setupExitSignalHandling() (context.Context, func()) {
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 16)
	activeBackgroundWorkers.Add(1)
	go func() {
		defer activeBackgroundWorkers.Done()
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return
			case sig := <-sigChan:
				switch sig {
				case os.Interrupt, syscall.SIGTERM, syscall.SIGABRT:
					globalLogger.Info("interrupted, skipping remaining checks")
					signal.Ignore(os.Interrupt, syscall.SIGTERM, syscall.SIGABRT)
					return
				default:
					globalLogger.Debugw("received unknown signal", "signal", sig)
				}
			}
		}
	}()

	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGABRT)
	return ctx, cancel
}

// helper to log.Fatal if error is non-nil.
func exitIfError(err error) {
	if err != nil {
		globalLogger.Fatal(err)
	}
}

func getLock() (lockfile.Lockfile, error) {
	pidFile, err := lockfile.New(filepath.Join(os.TempDir(), binaryName+".pid"))
	if err != nil {
		return "", errors.Wrap(err, "init lockfile")
	}
	err = pidFile.TryLock()
	if err == nil {
		return pidFile, nil
	}

	globalLogger.Warn(errors.Wrapf(err, "locking %s", pidFile))

	// if it's a potentially temporary error, retry
	if !errors.Is(err, lockfile.ErrBusy) && !errors.Is(err, lockfile.ErrNotExist) {
		return "", err
	}
	time.Sleep(2 * time.Second)
	globalLogger.Warn("retrying lock")
	err = pidFile.TryLock()
	if err == nil || !errors.Is(err, lockfile.ErrBusy) {
		return pidFile, err
	}

	// low, sequential PIDs repeat after a reboot, so make sure the owner really is another bt-doctor
	proc, err := pidFile.GetOwner()
	if err != nil {
		globalLogger.Warn(errors.Wrap(err, "getting lockfile owner"))
		return removeStaleLock(pidFile)
	}
	runPath, err := filepath.EvalSymlinks(fmt.Sprintf("/proc/%d/exe", proc.Pid))
	if err != nil {
		globalLogger.Warn(errors.Wrap(err, "cannot get info on lockfile owner"))
		return removeStaleLock(pidFile)
	}
	if !strings.Contains(runPath, binaryName) {
		globalLogger.Warnf("lockfile owner isn't %s", binaryName)
		return removeStaleLock(pidFile)
	}
	return "", errors.Errorf("another %s is already running with PID: %d", binaryName, proc.Pid)
}

func removeStaleLock(pidFile lockfile.Lockfile) (lockfile.Lockfile, error) {
	globalLogger.Warnf("deleting lockfile %s", pidFile)
	if err := os.RemoveAll(string(pidFile)); err != nil {
		return "", errors.Wrap(err, "removing lockfile")
	}
	return pidFile, pidFile.TryLock()
}
