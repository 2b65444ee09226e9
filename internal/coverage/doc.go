/*
Package coverage converts the JavaScript coverage Chrome reports into Istanbul
statement coverage of the original source files.

Chrome reports, per script, the offsets of every block that executed. A
conversion runs each script through these steps:

  - merge reports for the same script loaded by several frames
  - resolve the script's source map (see package sourcemap)
  - map every covered range to original files, splitting ranges that cross
    from one file into another
  - optionally infer uncovered regions between covered ones
  - optionally split multi-line regions into one region per line
  - number the regions as Istanbul statements

Scripts without a usable source map are reported under their own URL path.

The Accumulator keeps the merged coverage of every conversion for the
lifetime of the process.
*/
package coverage
