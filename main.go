package main

import "layoffscrub/cmd"

func main() {
	cmd.Execute()
}
