package main

import (
	"github.com/modu-commerce/order-core/internal/app"
	"github.com/modu-commerce/order-core/internal/config"
)

func main() {
	config.MustInit()
	app.MustNewApp().Run()
}
