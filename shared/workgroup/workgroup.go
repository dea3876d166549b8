package workgroup

import "github.com/woutdenolf/coilmq/shared/logging"

var _workgroupLogger = logging.NewLogger("WorkGroup")

type workGroup interface {
	Run(f func() bool)
}

var defaultFailOverWorkGroup failOverWorkGroup

type failOverWorkGroup struct {
}

// Run executes fn on a dedicated goroutine. The task is restarted after a
// panic or after returning false; returning true shuts the task down.
func (f failOverWorkGroup) Run(fn func() bool) {
	go func() {
		for {
			if shutdown := runGuarded(fn); shutdown {
				break
			}
			_workgroupLogger.Infoln("WorkGroup restarting task after last round completed")
		}
	}()
}

func runGuarded(fn func() bool) (shutdown bool) {
	defer func() {
		if err := recover(); err != nil {
			_workgroupLogger.Errorln("WorkGroup will restart task after reporting panic:", err)
			shutdown = false
		}
	}()
	return fn()
}

func WithFailOver() workGroup {
	return defaultFailOverWorkGroup
}
