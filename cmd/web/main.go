package main

import "payflow_backend/internal/app"

func main() {
	app.Run()
}
