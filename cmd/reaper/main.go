// Reaper - scheduled destruction of AWS resources.
// Enumerate. Filter. Delete.
package main

func main() {
	Execute()
}
