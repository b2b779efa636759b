package tabcatapp

import (
	appbase "github.com/tabletools/tabcat/app/base"
	_ "github.com/tabletools/tabcat/app/fetch"
	_ "github.com/tabletools/tabcat/app/find"
	_ "github.com/tabletools/tabcat/app/healthcheck"
	_ "github.com/tabletools/tabcat/app/publish"
	_ "github.com/tabletools/tabcat/app/reindex"
)

var App = appbase.App
