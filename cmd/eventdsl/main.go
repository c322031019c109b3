// Command eventdsl checks, compiles, evaluates and serves event type
// declarations.
package main

func main() {
	Execute()
}
