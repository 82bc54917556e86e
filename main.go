package main

import (
	"fmt"

	"github.com/fromchat/chat-core-service/cmd"
)

func main() {
	if err := cmd.Run(); err != nil {
		fmt.Println(err.Error())
		return
	}
}
