// Command twinrouter simulates the two-router packet fabric.
package main

func main() {
	Execute()
}
