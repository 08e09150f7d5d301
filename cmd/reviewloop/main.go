// Command reviewloop runs the planner/reviewer correction loop from the
// command line or as an HTTP service.
package main

func main() {
	Execute()
}
