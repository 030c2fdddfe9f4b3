// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package segment splits document text into fixed-size overlapping
// segments and derives stable content hashes for them.
//
// Segmentation is streaming: text arrives one block (usually one page) at
// a time and the unconsumed tail, the carry, is handed back to the caller
// to be prepended to the next block. At the end of a document the caller
// flushes the carry as a final, possibly short, segment.
//
//	seg, err := segment.New(1200, 200)
//	if err != nil {
//	    return err
//	}
//	var carry string
//	for _, page := range pages {
//	    var out []string
//	    out, carry = seg.Split(carry, page)
//	    emit(out...)
//	}
//	if last, ok := seg.Flush(carry); ok {
//	    emit(last)
//	}
//
// Lengths are measured in characters (runes), not bytes. Invalid UTF-8 is
// replaced with U+FFFD so segmentation never fails on corrupt input.
package segment
