// Command hybridqa answers retail analytics questions from documents and a database.
package main

func main() {
	Execute()
}
