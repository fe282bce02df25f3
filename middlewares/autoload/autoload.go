package autoload

// Import all middleware subpackages for side-effect registration.
import (
	_ "tableagent/middlewares/chartnote"
	_ "tableagent/middlewares/emptyreply"
	_ "tableagent/middlewares/greeting"
	_ "tableagent/middlewares/tokenbudget"
	_ "tableagent/middlewares/toolfocus"
)
