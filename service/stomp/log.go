package stomp

import "github.com/woutdenolf/coilmq/shared/logging"

var (
	_handlerLogger   = logging.NewLogger("StompHandler")
	_queueLogger     = logging.NewLogger("QueueManager")
	_topicLogger     = logging.NewLogger("TopicManager")
	_storeLogger     = logging.NewLogger("QueueStore")
	_schedulerLogger = logging.NewLogger("Scheduler")
	_serviceLogger   = logging.NewLogger("StompServer")
	_manageLogger    = logging.NewLogger("ManageAPI")
)
