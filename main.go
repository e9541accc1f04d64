package main

import "github.com/ValentinKolb/imuipc/cmd"

func main() {
	cmd.Execute()
}
