package main

import (
	"github.com/joho/godotenv"

	"github.com/bigkevmcd/capomastro/api/cmd/capomastro"
)

func main() {
	_ = godotenv.Load()
	capomastro.Execute()
}
