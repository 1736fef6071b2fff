// Command neuroflow is the command line front end for the analysis core:
// single-recording pipeline runs, batch processing, session inspection, and
// configuration utilities.
package main
