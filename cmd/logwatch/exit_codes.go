package main

const (
	exitCodeSuccess  = 0
	exitCodeFacility = 1
	exitCodeUsage    = 2
)
