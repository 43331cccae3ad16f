package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"regmap/cmd/regmap/command"
)

// 打印欢迎信息
func printWelcomeMessage() {
	fmt.Println("Welcome to the regmap REPL! Type 'exit' to quit.")
	fmt.Println("Type 'help' to see the list of available commands.")
}

func main() {
	// 带参数时直接执行一次命令
	if len(os.Args) > 1 {
		if err := command.NewRootCommand().Execute(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	scanner := bufio.NewScanner(os.Stdin)
	printWelcomeMessage()

	// 进入 REPL 循环
	for {
		fmt.Print("regmap> ")
		if !scanner.Scan() {
			break
		}
		args := strings.Fields(scanner.Text())
		if len(args) == 0 {
			continue
		}
		if strings.ToLower(args[0]) == "exit" {
			fmt.Println("Exiting regmap...")
			break
		}
		// 每次重新创建根命令, 避免上一次的 flag 残留
		rootCmd := command.NewRootCommand()
		rootCmd.SetArgs(args)
		if err := rootCmd.Execute(); err != nil {
			fmt.Printf("Error: %v\n", err)
		}
	}

	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
	}
}
