// Package source reads data source files into session records.
//
// A source file is read into memory whole, decompressed when it is zstd
// compressed, and decoded as JSON or YAML into a list of session objects:
//
//	[{
//	  "subject_name": "mouse-17",
//	  "sample_number": 3,
//	  "session_date": "2021-03-04",
//	  "stimulations": [{
//	    "fps": 60, "n_frames": 1200, "pixel_size": 7.5,
//	    "stim_height": 20, "stim_width": 15, "stimulus_onset": 0.25,
//	    "x_block_size": 4, "y_block_size": 4,
//	    "movie": {"shape": [20, 15, 1200], "data": [...]},
//	    "spikes": [[[1.02], [1.9]], [[3.5]]]
//	  }]
//	}]
//
// "movie" may also be a nested array, in which case its shape is inferred.
// "spikes" is a flat list of spike times for the flat layout and a list of
// spike groups, each a list of spike-time tuples, for the grouped layout.
//
// Every field is required. A missing or mistyped field fails the whole
// source with rgpipe.ErrMalformedRecord, naming the offending path.
package source
