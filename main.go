package main

import "github.com/klytics/xladjust/cmd"

func main() {
	cmd.Execute()
}
